package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusego/model"
)

func TestUpsertGet(t *testing.T) {
	s := New()

	id := model.StringID("doc-1")

	prev, v1 := s.Upsert(id, 0, []float32{1, 2}, map[string]any{"lang": "en"})
	assert.Nil(t, prev)
	assert.Equal(t, 1, s.Len())

	e, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, uint32(0), e.Handle)
	assert.Equal(t, []float32{1, 2}, e.Vector)
	assert.Equal(t, "en", e.Payload["lang"])
	assert.Equal(t, v1, e.Version)

	// Vector is copied on the way in.
	src := []float32{3, 4}
	s.Upsert(model.NumericID(7), 1, src, nil)
	src[0] = 99

	e, ok = s.Get(model.NumericID(7))
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, e.Vector)
}

func TestUpsertCopiesPayload(t *testing.T) {
	s := New()

	payload := map[string]any{
		"lang": "en",
		"meta": map[string]any{"stars": 5},
	}

	s.Upsert(model.StringID("doc-1"), 0, []float32{1, 2}, payload)

	payload["lang"] = "de"
	payload["meta"].(map[string]any)["stars"] = 1

	e, ok := s.Get(model.StringID("doc-1"))
	require.True(t, ok)
	assert.Equal(t, "en", e.Payload["lang"])
	assert.Equal(t, 5, e.Payload["meta"].(map[string]any)["stars"])
}

func TestUpsertReturnsPrevious(t *testing.T) {
	s := New()

	id := model.NumericID(1)

	_, v1 := s.Upsert(id, 0, []float32{1}, nil)

	prev, v2 := s.Upsert(id, 1, []float32{2}, nil)
	require.NotNil(t, prev)
	assert.Equal(t, uint32(0), prev.Handle)
	assert.Equal(t, v1, prev.Version)
	assert.Greater(t, v2, v1)
	assert.Equal(t, 1, s.Len())

	// The superseded handle still resolves nothing current.
	_, ok := s.ByHandle(0)
	assert.False(t, ok)

	e, ok := s.ByHandle(1)
	require.True(t, ok)
	assert.Equal(t, id, e.ID)

	s.Release(0)

	e, ok = s.ByHandle(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), e.Handle)
}

func TestReleaseKeepsCurrentHandle(t *testing.T) {
	s := New()

	id := model.NumericID(1)
	s.Upsert(id, 5, []float32{1}, nil)

	s.Release(5)

	e, ok := s.ByHandle(5)
	require.True(t, ok)
	assert.Equal(t, id, e.ID)
}

func TestDelete(t *testing.T) {
	s := New()

	id := model.StringID("x")
	s.Upsert(id, 3, []float32{1}, nil)

	e, ok := s.Delete(id)
	require.True(t, ok)
	assert.Equal(t, uint32(3), e.Handle)
	assert.Equal(t, 0, s.Len())

	_, ok = s.Delete(id)
	assert.False(t, ok)

	_, ok = s.Get(id)
	assert.False(t, ok)

	_, ok = s.ByHandle(3)
	assert.False(t, ok)
}

func TestScan(t *testing.T) {
	s := New()

	s.Upsert(model.NumericID(1), 0, []float32{1}, nil)
	s.Upsert(model.NumericID(2), 1, []float32{2}, nil)
	s.Upsert(model.StringID("a"), 2, []float32{3}, nil)

	seen := map[string]uint32{}
	for id, e := range s.Scan() {
		seen[id.String()] = e.Handle
	}

	assert.Equal(t, map[string]uint32{"1": 0, "2": 1, "a": 2}, seen)

	// Early break is fine.
	count := 0
	for range s.Scan() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
