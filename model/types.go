package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// IDKind discriminates the two supported document id representations.
type IDKind uint8

const (
	// IDKindInvalid is the zero value; no valid document carries it.
	IDKindInvalid IDKind = iota
	// IDKindUint64 marks a caller-supplied unsigned integer id.
	IDKindUint64
	// IDKindString marks a caller-supplied string id.
	IDKindString
)

// DocumentID is the user-facing stable identifier of a document.
// It is a union of an unsigned integer and a string, comparable and
// usable as a map key. The zero value is invalid.
type DocumentID struct {
	kind IDKind
	num  uint64
	str  string
}

// NumericID returns a DocumentID backed by an unsigned integer.
func NumericID(n uint64) DocumentID {
	return DocumentID{kind: IDKindUint64, num: n}
}

// StringID returns a DocumentID backed by a string.
func StringID(s string) DocumentID {
	return DocumentID{kind: IDKindString, str: s}
}

// Kind reports which representation the id carries.
func (id DocumentID) Kind() IDKind { return id.kind }

// IsZero reports whether the id is the invalid zero value.
func (id DocumentID) IsZero() bool { return id.kind == IDKindInvalid }

// Uint64 returns the numeric value. Valid only for IDKindUint64.
func (id DocumentID) Uint64() uint64 { return id.num }

// String returns a human-readable representation.
func (id DocumentID) String() string {
	switch id.kind {
	case IDKindUint64:
		return strconv.FormatUint(id.num, 10)
	case IDKindString:
		return id.str
	default:
		return "<invalid>"
	}
}

// Less imposes a total order over DocumentIDs: numeric ids sort before
// string ids, then by value. Used for deterministic tie-breaking.
func (id DocumentID) Less(other DocumentID) bool {
	if id.kind != other.kind {
		return id.kind < other.kind
	}
	if id.kind == IDKindUint64 {
		return id.num < other.num
	}
	return id.str < other.str
}

// MarshalJSON encodes numeric ids as JSON numbers and string ids as
// JSON strings, matching the wire shape callers supply.
func (id DocumentID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case IDKindUint64:
		return json.Marshal(id.num)
	case IDKindString:
		return json.Marshal(id.str)
	default:
		return nil, fmt.Errorf("model: cannot marshal invalid document id")
	}
}

// UnmarshalJSON accepts a JSON number or string.
func (id *DocumentID) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = NumericID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("model: document id must be an unsigned integer or a string: %w", err)
	}
	*id = StringID(s)
	return nil
}

// Document is a full record as supplied by the caller.
type Document struct {
	ID      DocumentID     `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Hit is a single ranked search result.
//
// Score carries the fused score for hybrid queries, or the source's
// native score when only one source was queried. The per-source scores
// are set whenever the document appeared in the respective ranking.
type Hit struct {
	ID           DocumentID     `json:"id"`
	Score        float32        `json:"score"`
	VectorScore  *float32       `json:"vector_score,omitempty"`
	LexicalScore *float32       `json:"lexical_score,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Vector       []float32      `json:"vector,omitempty"`
}

// SearchResponse is the outcome of a search. Warnings surface partial
// degradation (e.g. one fusion source failing) without failing the
// whole query.
type SearchResponse struct {
	Hits     []Hit    `json:"hits"`
	Warnings []string `json:"warnings,omitempty"`
}
