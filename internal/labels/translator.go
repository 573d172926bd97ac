// Package labels maps raw event names to human-readable labels. Lookups
// try the case-type-specific catalogue first, then the default catalogue,
// then fall back to a humanized form of the event name itself so an
// unlabelled event never renders blank.
package labels

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalogue struct {
	Events map[string]map[string]string `yaml:"events"`
}

// Translator resolves event labels from a YAML catalogue.
type Translator struct {
	events map[string]map[string]string
}

// Load reads a label catalogue of the form:
//
//	events:
//	  default:
//	    add_note_to_case: "Add note to case"
//	  foi:
//	    respond: "Mark response as sent"
func Load(path string) (*Translator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label catalogue: %w", err)
	}
	var cat catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse label catalogue: %w", err)
	}
	return &Translator{events: cat.Events}, nil
}

// New builds a Translator from an in-memory catalogue. Used in tests.
func New(events map[string]map[string]string) *Translator {
	return &Translator{events: events}
}

// EventLabel returns the label for event on the given case type.
func (t *Translator) EventLabel(caseType, event string) string {
	if byType, ok := t.events[caseType]; ok {
		if label, ok := byType[event]; ok {
			return label
		}
	}
	if defaults, ok := t.events["default"]; ok {
		if label, ok := defaults[event]; ok {
			return label
		}
	}
	return Humanize(event)
}

// Humanize turns a snake_case event name into a sentence-style label.
func Humanize(event string) string {
	words := strings.Split(event, "_")
	if first := words[0]; first != "" {
		words[0] = strings.ToUpper(first[:1]) + first[1:]
	}
	return strings.Join(words, " ")
}
