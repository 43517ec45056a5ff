package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/MrWong99/voxmate/internal/controller"
	"github.com/MrWong99/voxmate/internal/oracle"
	"github.com/MrWong99/voxmate/pkg/types"
)

// Message types sent by the extension.
const (
	TypeHello       = "hello"
	TypeTranscript  = "transcript"
	TypeAudio       = "audio"
	TypeRecognition = "recognition"
	TypeMoveList    = "movelist"
	TypeMoveEvent   = "move_event"
	TypeFEN         = "fen"
	TypeSettings    = "settings"
	TypeReply       = "reply"
)

// Message types sent to the extension. "recognition" is shared with the
// inbound set and carries a command in this direction.
const (
	TypeExecute      = "execute"
	TypeAction       = "action"
	TypeSpeak        = "speak"
	TypeCancelSpeech = "cancel_speech"
	TypeStatus       = "status"
	TypeLegalMoves   = "legal_moves"
	TypeMove         = "move"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Type string `json:"type"`

	// ID correlates a request with its reply. Empty for notifications.
	ID string `json:"id,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
}

// newEnvelope marshals payload into an envelope.
func newEnvelope(typ, id string, payload any) (Envelope, error) {
	env := Envelope{Type: typ, ID: id}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("bridge: marshal %s: %w", typ, err)
	}
	env.Payload = raw
	return env, nil
}

// decode unmarshals the envelope payload into v.
func (e Envelope) decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("bridge: decode %s: %w", e.Type, err)
	}
	return nil
}

// ── Inbound payloads ────────────────────────────────────────────────────────

// Hello is the first message on every connection.
type Hello struct {
	Tab          string               `json:"tab"`
	Capabilities Capabilities         `json:"capabilities"`
	Settings     *controller.Settings `json:"settings,omitempty"`
}

// Capabilities describes what the extension found on the host page.
type Capabilities struct {
	HostGame bool   `json:"hostGame"`
	FEN      string `json:"fen,omitempty"`

	// NativeSpeech is true when the browser offers a speech recognizer.
	NativeSpeech bool `json:"nativeSpeech"`
}

// Oracle converts c to the oracle probe input.
func (c Capabilities) Oracle() oracle.Capabilities {
	return oracle.Capabilities{HostGame: c.HostGame, FEN: c.FEN}
}

// TranscriptMsg is a result from the browser recognizer.
type TranscriptMsg struct {
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
}

// AudioMsg carries microphone PCM for the offline recognizer.
type AudioMsg struct {
	// PCM is base64-encoded 16-bit little-endian mono audio.
	PCM        string `json:"pcm"`
	SampleRate int    `json:"sampleRate"`
}

// RecognitionMsg reports browser recognizer lifecycle events ("started",
// "ended", "error") inbound, and carries "start"/"stop" commands outbound.
type RecognitionMsg struct {
	Event   string `json:"event,omitempty"`
	Error   string `json:"error,omitempty"`
	Command string `json:"command,omitempty"`
	Lang    string `json:"lang,omitempty"`
}

// MoveListMsg is the rendered move list of the host page.
type MoveListMsg struct {
	Text  string `json:"text"`
	Force bool   `json:"force,omitempty"`
}

// MoveEventMsg reports a move committed on the host board.
type MoveEventMsg struct {
	SAN string `json:"san"`
	Ply *int   `json:"ply,omitempty"`
}

// Event converts m to the shared move event type.
func (m MoveEventMsg) Event() types.MoveEvent {
	ev := types.MoveEvent{SAN: m.SAN, Ply: -1}
	if m.Ply != nil {
		ev.Ply = *m.Ply
	}
	return ev
}

// FENMsg is a position read from the host page.
type FENMsg struct {
	FEN string `json:"fen"`
}

// Reply answers a request sent to the extension.
type Reply struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
	Moves []MoveMsg `json:"moves,omitempty"`
	Turn  string    `json:"turn,omitempty"`
}

// ── Outbound payloads ───────────────────────────────────────────────────────

// MoveMsg is a move on the wire, used in execute and move requests and in
// legal_moves replies.
type MoveMsg struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Piece     string `json:"piece,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san,omitempty"`
}

// ExecuteMsg asks the extension to play a move with input method Attempt.
type ExecuteMsg struct {
	MoveMsg
	Attempt int `json:"attempt"`
}

// ActionMsg asks the extension to press a game control.
type ActionMsg struct {
	Action string `json:"action"`
}

// SpeakMsg asks the extension to speak text, cancelling anything in flight.
type SpeakMsg struct {
	Text string `json:"text"`
}

// StatusMsg updates the status line of the extension popup.
type StatusMsg struct {
	Text string `json:"text"`
}

func toMoveMsg(m types.LegalMove) MoveMsg {
	out := MoveMsg{From: m.From, To: m.To, SAN: m.SAN}
	if m.Piece != 0 {
		out.Piece = string(m.Piece)
	}
	if m.Promotion != 0 {
		out.Promotion = string(m.Promotion)
	}
	return out
}

func fromMoveMsg(m MoveMsg) types.LegalMove {
	out := types.LegalMove{From: m.From, To: m.To, SAN: m.SAN}
	if len(m.Piece) == 1 {
		out.Piece = m.Piece[0]
	}
	if len(m.Promotion) == 1 {
		out.Promotion = m.Promotion[0] &^ 0x20
	}
	return out
}
