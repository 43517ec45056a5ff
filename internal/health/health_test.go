package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "journal", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "tabs", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Checks["journal"] != "ok" {
		t.Errorf("journal check = %q, want %q", body.Checks["journal"], "ok")
	}
	if body.Checks["tabs"] != "ok" {
		t.Errorf("tabs check = %q, want %q", body.Checks["tabs"], "ok")
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "journal", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "tabs", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["journal"] != "fail: connection refused" {
		t.Errorf("journal check = %q, want %q", body.Checks["journal"], "fail: connection refused")
	}
	if body.Checks["tabs"] != "ok" {
		t.Errorf("tabs check = %q, want %q", body.Checks["tabs"], "ok")
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersFail(t *testing.T) {
	h := New(
		Checker{Name: "journal", Check: func(_ context.Context) error {
			return errors.New("timeout")
		}},
		Checker{Name: "tabs", Check: func(_ context.Context) error {
			return errors.New("no tab connected")
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["journal"] != "fail: timeout" {
		t.Errorf("journal check = %q", body.Checks["journal"])
	}
	if body.Checks["tabs"] != "fail: no tab connected" {
		t.Errorf("tabs check = %q", body.Checks["tabs"])
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(
		Checker{Name: "test", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	t.Parallel()
	ok := PingCheck("journal", fakePinger{})
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
	bad := PingCheck("journal", fakePinger{err: errors.New("refused")})
	if err := bad.Check(context.Background()); err == nil {
		t.Error("Check() = nil, want error")
	}
}

func TestPathCheck(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := PathCheck("vosk_model", dir).Check(context.Background()); err != nil {
		t.Errorf("existing dir: Check() = %v, want nil", err)
	}
	if err := PathCheck("vosk_model", filepath.Join(dir, "missing")).Check(context.Background()); err == nil {
		t.Error("missing dir: Check() = nil, want error")
	}
}

func TestAdd_ChecksAreEvaluated(t *testing.T) {
	h := New()
	h.Add(Checker{Name: "late", Check: func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRun_Concurrent(t *testing.T) {
	t.Parallel()
	block := func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	start := time.Now()
	errs := Run(context.Background(), []Checker{
		{Name: "a", Check: block},
		{Name: "b", Check: block},
		{Name: "c", Check: block},
	})
	if len(errs) != 0 {
		t.Errorf("Run() errors = %v, want none", errs)
	}
	if elapsed := time.Since(start); elapsed > 550*time.Millisecond {
		t.Errorf("Run() took %s, checks should run concurrently", elapsed)
	}
}
