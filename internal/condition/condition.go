// Package condition evaluates targeting conditions attached to eligibility
// rules and budget policies against an employee.
//
// A condition set arrives as JSON in one of two shapes:
//
//	{"match_all": [{"field": "grade", "operator": "in", "value": ["A", "B"]}]}
//	{"grade": ["A"], "min_tenure": 12, "location": ["Moscow"], "legal_entity": ["LLC"]}
//
// The shape is decided once while decoding and kept as Set.Kind.
package condition

import (
	"bytes"
	"encoding/json"
)

type Kind int

const (
	// Null, missing or empty object. Matches everyone
	KindEmpty Kind = iota
	// Structured list of clauses
	KindMatchAll
	// Shorthand with well known fields
	KindFlat
)

type Operator string

const (
	OpIn  Operator = "in"
	OpGte Operator = "gte"
	OpLte Operator = "lte"
	OpEq  Operator = "eq"
)

// Subject is anything conditions may be evaluated against
type Subject interface {
	// Field returns the value of the named attribute and false if it is unknown
	Field(name string) (any, bool)
}

type Clause struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Flat is the shorthand form. Nil slices and nil MinTenure are not checked
type Flat struct {
	Grade       []string `json:"grade,omitempty"`
	MinTenure   *int     `json:"min_tenure,omitempty"`
	Location    []string `json:"location,omitempty"`
	LegalEntity []string `json:"legal_entity,omitempty"`
}

type Set struct {
	Kind     Kind
	MatchAll []Clause
	Flat     Flat

	// Set when JSON had a known key with a value of the wrong type.
	// Malformed sets never match; raw is kept to store the value back unchanged
	malformed bool
	raw       json.RawMessage
}

func MatchAll(clauses ...Clause) Set {
	if clauses == nil {
		clauses = []Clause{}
	}
	return Set{Kind: KindMatchAll, MatchAll: clauses}
}

func FromFlat(f Flat) Set {
	return Set{Kind: KindFlat, Flat: f}
}

// Parse decodes condition JSON. It fails only on syntactically broken JSON
func Parse(data []byte) (Set, error) {
	var s Set
	err := s.UnmarshalJSON(data)
	return s, err
}

func (s *Set) UnmarshalJSON(data []byte) error {
	*s = Set{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		// Valid JSON but not an object (array, number...) never matches
		var anything any
		if jsonErr := json.Unmarshal(trimmed, &anything); jsonErr != nil {
			return jsonErr
		}
		s.Kind = KindFlat
		s.markMalformed(trimmed)
		return nil
	}

	if len(obj) == 0 {
		return nil
	}

	if rawClauses, ok := obj["match_all"]; ok {
		s.Kind = KindMatchAll
		s.MatchAll = []Clause{}
		if err := json.Unmarshal(rawClauses, &s.MatchAll); err != nil {
			s.markMalformed(trimmed)
		}
		return nil
	}

	s.Kind = KindFlat
	fields := []struct {
		key    string
		target any
	}{
		{"grade", &s.Flat.Grade},
		{"min_tenure", &s.Flat.MinTenure},
		{"location", &s.Flat.Location},
		{"legal_entity", &s.Flat.LegalEntity},
	}
	for _, f := range fields {
		raw, ok := obj[f.key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, f.target); err != nil {
			s.markMalformed(trimmed)
			return nil
		}
	}

	return nil
}

func (s *Set) markMalformed(raw []byte) {
	s.malformed = true
	s.raw = append(json.RawMessage(nil), raw...)
}

func (s Set) MarshalJSON() ([]byte, error) {
	switch {
	case s.malformed:
		return s.raw, nil
	case s.Kind == KindMatchAll:
		clauses := s.MatchAll
		if clauses == nil {
			clauses = []Clause{}
		}
		return json.Marshal(struct {
			MatchAll []Clause `json:"match_all"`
		}{clauses})
	case s.Kind == KindFlat:
		return marshalFlat(s.Flat)
	default:
		return []byte("{}"), nil
	}
}

// Empty lists are meaningful (nothing matches) so omitempty is not enough
func marshalFlat(f Flat) ([]byte, error) {
	out := make(map[string]any, 4)
	if f.Grade != nil {
		out["grade"] = f.Grade
	}
	if f.MinTenure != nil {
		out["min_tenure"] = *f.MinTenure
	}
	if f.Location != nil {
		out["location"] = f.Location
	}
	if f.LegalEntity != nil {
		out["legal_entity"] = f.LegalEntity
	}
	return json.Marshal(out)
}

// Malformed reports whether the source JSON had values of unexpected types
func (s Set) Malformed() bool {
	return s.malformed
}

// Specificity is the number of constrained fields
// Used to prefer narrowly targeted budget policies over broad ones
func (s Set) Specificity() int {
	switch s.Kind {
	case KindMatchAll:
		return len(s.MatchAll)
	case KindFlat:
		n := 0
		if s.Flat.Grade != nil {
			n++
		}
		if s.Flat.MinTenure != nil {
			n++
		}
		if s.Flat.Location != nil {
			n++
		}
		if s.Flat.LegalEntity != nil {
			n++
		}
		return n
	default:
		return 0
	}
}
