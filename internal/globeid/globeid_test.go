package globeid

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knotter/internal/store"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr string
	}{
		{raw: "earth", want: "earth"},
		{raw: "EARTH_01", want: "earth_01"},
		{raw: "  mars  ", want: "mars"},
		{raw: "ｍａｒｓ", want: "mars"}, // full-width letters fold under NFKC
		{raw: "globe0", want: "globe0"},
		{raw: "", wantErr: "required"},
		{raw: "abcdefghijklm", wantErr: "longer than 12"},
		{raw: "a--b", wantErr: "invalid characters"},
		{raw: "a/b", wantErr: "invalid characters"},
		{raw: "héllo", wantErr: "invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalid)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_Shape(t *testing.T) {
	shape := regexp.MustCompile(`^[b-df-hj-np-tv-xz][aeiou][b-df-hj-np-tv-xz][aeiou][0-9]{2}[b-df-hj-np-tv-xz][aeiou][b-df-hj-np-tv-xz][aeiou]$`)

	for range 100 {
		id := Generate()
		assert.Regexp(t, shape, id)

		normalized, err := Normalize(id)
		require.NoError(t, err)
		assert.Equal(t, id, normalized)
	}
}

// sequence yields the given candidates in order, then repeats the last.
func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[min(i, len(ids)-1)]
		i++
		return id
	}
}

func TestAllocator_SkipsGlobesWithEvents(t *testing.T) {
	ctx := context.Background()
	log, err := store.Open(store.DriverMemory, "")
	require.NoError(t, err)
	defer log.Close()

	_, err = log.Append(ctx, "taken", []byte(`{}`))
	require.NoError(t, err)

	a := NewAllocator(log, WithGenerator(sequence("taken", "fresh")))
	id, err := a.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", id)
}

func TestAllocator_NeverRepeatsAnId(t *testing.T) {
	ctx := context.Background()
	log, err := store.Open(store.DriverMemory, "")
	require.NoError(t, err)
	defer log.Close()

	a := NewAllocator(log, WithGenerator(sequence("one", "one", "two")))

	first, err := a.Allocate(ctx)
	require.NoError(t, err)
	second, err := a.Allocate(ctx)
	require.NoError(t, err)

	assert.Equal(t, "one", first)
	assert.Equal(t, "two", second)
}

func TestAllocator_GivesUp(t *testing.T) {
	ctx := context.Background()
	log, err := store.Open(store.DriverMemory, "")
	require.NoError(t, err)
	defer log.Close()

	a := NewAllocator(log, WithGenerator(sequence("same")))
	_, err = a.Allocate(ctx)
	require.NoError(t, err)

	_, err = a.Allocate(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}
