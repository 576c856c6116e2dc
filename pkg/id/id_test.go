package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 24, 9, 30, 0, 0, time.UTC)
	a := New(at)
	b := New(at)
	c := New(at.Add(time.Second))

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "monotonic within the same millisecond")
	assert.Less(t, b, c)

	got, err := Time(c)
	require.NoError(t, err)
	assert.True(t, got.Equal(at.Add(time.Second)))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}

func TestDigestIsDeterministic(t *testing.T) {
	t.Parallel()

	build := func() string {
		return NewDigest("test").
			Str("base", "EUR").
			Float("w", 0.1+0.2).
			Int("n", 3).
			Bool("no_sell", true).
			Sum()
	}

	assert.Equal(t, build(), build())
	assert.Len(t, build(), 64)

	other := NewDigest("test").Str("base", "USD").Float("w", 0.1+0.2).Int("n", 3).Bool("no_sell", true).Sum()
	assert.NotEqual(t, build(), other)

	kind := NewDigest("other").Str("base", "EUR").Float("w", 0.1+0.2).Int("n", 3).Bool("no_sell", true).Sum()
	assert.NotEqual(t, build(), kind)
}

func TestDigestFieldBoundaries(t *testing.T) {
	t.Parallel()

	a := NewDigest("k").Str("a", "b\nc=d").Sum()
	b := NewDigest("k").Str("a", "b").Str("c", "d").Sum()
	assert.NotEqual(t, a, b)
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{0.1, "0.1"},
		{-2.5, "-2.5"},
		{1e-7, "0.0000001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Canonical(tt.in))
	}

	// summed at run time, so the float64 addition is not folded to 0.3
	a, b := 0.1, 0.2
	assert.Equal(t, Canonical(a+b), Canonical(a+b))
	assert.Equal(t, "0.30000000000000004", Canonical(a+b))
	assert.NotEqual(t, Canonical(0.3), Canonical(a+b))
}
