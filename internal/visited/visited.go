// Package visited provides a reusable visited-set for graph traversal,
// backed by a bitset with a dirty list for O(visited) reset.
package visited

// Set tracks visited node handles.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a Set sized for the given number of handles.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a handle as visited.
func (s *Set) Visit(ref uint32) {
	word := int(ref >> 6)
	mask := uint64(1) << (ref & 63)

	if word >= len(s.bits) {
		s.grow(word + 1)
	}

	if s.bits[word]&mask == 0 {
		s.bits[word] |= mask
		s.dirty = append(s.dirty, ref)
	}
}

// Visited reports whether the handle has been visited.
func (s *Set) Visited(ref uint32) bool {
	word := int(ref >> 6)
	if word >= len(s.bits) {
		return false
	}
	return s.bits[word]&(uint64(1)<<(ref&63)) != 0
}

// Reset clears only the bits touched since the last reset.
func (s *Set) Reset() {
	for _, ref := range s.dirty {
		s.bits[ref>>6] &^= uint64(1) << (ref & 63)
	}
	s.dirty = s.dirty[:0]
}

func (s *Set) grow(newLen int) {
	newCap := len(s.bits) * 2
	if newCap < newLen {
		newCap = newLen
	}
	bits := make([]uint64, newCap)
	copy(bits, s.bits)
	s.bits = bits
}
