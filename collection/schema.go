package collection

import (
	"fmt"
	"strings"

	"github.com/hupe1980/fusego/distance"
	"github.com/hupe1980/fusego/model"
)

// BM25Config holds the BM25 scoring parameters of a collection's
// lexical index.
type BM25Config struct {
	// K1 controls term-frequency saturation.
	K1 float64 `json:"k1"`

	// B controls document-length normalization.
	B float64 `json:"b"`
}

// DefaultBM25Config returns the standard BM25 parameters.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.2, B: 0.75}
}

// Schema describes a collection: its name, vector space and which
// payload fields feed the lexical index.
type Schema struct {
	Name      string          `json:"name"`
	Dimension int             `json:"dimension"`
	Metric    distance.Metric `json:"metric"`

	// TextFields lists the payload fields whose string values are
	// concatenated into the lexically indexed text of a document.
	TextFields []string `json:"text_fields,omitempty"`

	// BM25 configures lexical scoring. Zero values take defaults.
	BM25 BM25Config `json:"bm25"`
}

// Normalize fills defaulted fields in place.
func (s *Schema) Normalize() {
	if s.BM25.K1 == 0 {
		s.BM25.K1 = DefaultBM25Config().K1
	}

	if s.BM25.B == 0 {
		s.BM25.B = DefaultBM25Config().B
	}
}

// Validate checks the schema at creation time.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ErrInvalidSchema{Name: s.Name, Reason: "collection name cannot be empty"}
	}

	if s.Dimension <= 0 {
		return &ErrInvalidSchema{Name: s.Name, Reason: "vector dimension must be positive"}
	}

	if !s.Metric.Valid() {
		return &ErrInvalidSchema{Name: s.Name, Reason: fmt.Sprintf("unknown metric %v", s.Metric)}
	}

	seen := make(map[string]struct{}, len(s.TextFields))

	for _, field := range s.TextFields {
		if strings.TrimSpace(field) == "" {
			return &ErrInvalidSchema{Name: s.Name, Reason: "text field name cannot be empty"}
		}

		if _, dup := seen[field]; dup {
			return &ErrInvalidSchema{Name: s.Name, Reason: fmt.Sprintf("duplicate text field %q", field)}
		}

		seen[field] = struct{}{}
	}

	if s.BM25.K1 < 0 {
		return &ErrInvalidSchema{Name: s.Name, Reason: "bm25 k1 must be non-negative"}
	}

	if s.BM25.B < 0 || s.BM25.B > 1 {
		return &ErrInvalidSchema{Name: s.Name, Reason: "bm25 b must be in [0, 1]"}
	}

	return nil
}

// ValidateDocument checks a document against the schema before a
// write is accepted.
func (s *Schema) ValidateDocument(doc model.Document) error {
	if doc.ID.IsZero() {
		return &ErrSchemaMismatch{Name: s.Name, Reason: "document id must be set"}
	}

	if len(doc.Vector) != s.Dimension {
		return &ErrSchemaMismatch{
			Name:   s.Name,
			Reason: fmt.Sprintf("vector dimension mismatch: expected %d, got %d", s.Dimension, len(doc.Vector)),
		}
	}

	if s.Metric.Normalizes() && isZeroVector(doc.Vector) {
		return &ErrSchemaMismatch{Name: s.Name, Reason: "zero vector cannot be indexed under the Cosine metric"}
	}

	return nil
}

// TextFor extracts the lexically indexed text of a payload: the string
// values of the schema's text fields (including string elements of
// array fields), joined in field order.
func (s *Schema) TextFor(payload map[string]any) string {
	if len(s.TextFields) == 0 || payload == nil {
		return ""
	}

	var sb strings.Builder

	appendText := func(text string) {
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}

	for _, field := range s.TextFields {
		switch v := payload[field].(type) {
		case string:
			appendText(v)
		case []any:
			for _, item := range v {
				if text, ok := item.(string); ok {
					appendText(text)
				}
			}
		}
	}

	return sb.String()
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
