package id

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestUUIDNewID ensures generated IDs are unique version 7 UUIDs.
func TestUUIDNewID(t *testing.T) {
	t.Parallel()

	var gen Generator = UUID{}
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestSequence(t *testing.T) {
	t.Parallel()

	s := &Sequence{Prefix: "batch"}
	first, _ := s.NewID()
	second, _ := s.NewID()
	require.Equal(t, "batch-1", first)
	require.Equal(t, "batch-2", second)
}
