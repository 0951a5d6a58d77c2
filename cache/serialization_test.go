package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializationRoundTrip(t *testing.T) {
	type task struct {
		ID        int64      `cbor:"id"`
		Title     string     `cbor:"title"`
		Completed bool       `cbor:"completed"`
		DueDate   *time.Time `cbor:"due_date"`
	}

	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := task{ID: 7, Title: "write report", Completed: false, DueDate: &due}

	payload, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal[task](payload)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Title, out.Title)
	require.NotNil(t, out.DueDate)
	assert.True(t, due.Equal(*out.DueDate))
}

func TestSerializationDeterministic(t *testing.T) {
	m := map[string]any{"b": 2, "a": 1, "c": 3}

	first, err := Marshal(m)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, first, again, "canonical encoding must be byte-stable")
	}
}

func TestSerializationDecodeLimits(t *testing.T) {
	huge := make([]int, 10001)

	payload, err := Marshal(huge)
	require.NoError(t, err)

	_, err = Unmarshal[[]int](payload)
	assert.Error(t, err, "oversized arrays must be rejected on decode")
}

func TestSerializationUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal[string]([]byte{0xff, 0x00})
	assert.Error(t, err)
}
