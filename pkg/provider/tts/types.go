package tts

// Voice selects how the backend renders a phrase.
type Voice struct {
	// Name is the backend voice name. Empty selects the default voice.
	Name string `yaml:"name" json:"name,omitempty"`

	// Lang is the BCP-47 language tag, e.g. "en-US".
	Lang string `yaml:"lang" json:"lang,omitempty"`

	// Rate is the speaking rate (0.1–10, 1 = normal). Zero means 1.
	Rate float64 `yaml:"rate" json:"rate,omitempty"`

	// Pitch is the voice pitch (0–2, 1 = normal). Zero means 1.
	Pitch float64 `yaml:"pitch" json:"pitch,omitempty"`
}
