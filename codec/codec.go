// Package codec centralizes snapshot payload encoding.
//
// Codec selection is a breaking-change boundary: persisted snapshots
// record the codec name in their header and are decoded by selecting
// the codec by name on load.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for newly written snapshots. Existing
// snapshots are self-describing and opened with the codec named in
// their header.
var Default Codec = GoJSON{}
