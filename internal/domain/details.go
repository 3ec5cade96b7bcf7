package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Example is a usage sentence attached to a card.
type Example struct {
	Sentence    string `json:"sentence"`
	Translation string `json:"translation,omitempty"`
}

// Details holds language-specific card metadata. The scheduler never
// reads it; it is stored as a JSON document.
type Details struct {
	PartOfSpeech     string    `json:"partOfSpeech,omitempty"`
	AudioURL         string    `json:"audioUrl,omitempty" validate:"omitempty,url"`
	ExampleSentences []Example `json:"exampleSentences,omitempty" validate:"omitempty,max=20"`
	Notes            string    `json:"notes,omitempty"`

	// Japanese
	Furigana    string `json:"furigana,omitempty"`
	PitchAccent []int  `json:"pitchAccent,omitempty"`

	// Chinese
	Pinyin   string `json:"pinyin,omitempty"`
	Bopomofo string `json:"bopomofo,omitempty"`

	// English
	IPA string `json:"ipa,omitempty"`
}

// Value implements driver.Valuer.
func (d *Details) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode card details: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *Details) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported card details type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, d)
}
