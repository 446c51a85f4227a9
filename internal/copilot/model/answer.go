package model

import "encoding/json"

// Answer is the tagged union produced at every capability boundary: either
// free text or a structured mapping. A zero Answer carries nothing and is
// dropped during final-answer coercion.
type Answer struct {
	Text       string         `json:"text,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
}

func TextAnswer(s string) Answer {
	return Answer{Text: s}
}

func StructuredAnswer(m map[string]any) Answer {
	return Answer{Structured: m}
}

// IsZero reports whether the answer carries neither text nor structure.
func (a Answer) IsZero() bool {
	return a.Text == "" && a.Structured == nil
}

// IsStructured reports whether the answer is the structured variant.
func (a Answer) IsStructured() bool {
	return a.Structured != nil
}

// String renders the answer for prompt concatenation: text as-is, structured
// payloads as compact JSON.
func (a Answer) String() string {
	if a.Structured != nil {
		b, err := json.Marshal(a.Structured)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return a.Text
}
