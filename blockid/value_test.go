package blockid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueCloneSharesBackingArray(t *testing.T) {
	b := []byte{1, 2, 3}
	v := New(b)
	clone := v.Clone()

	b[0] = 9
	require.Equal(t, byte(9), clone.Bytes()[0], "Clone should share the backing array")
}

func TestValueIntoOwnedCopies(t *testing.T) {
	b := []byte{1, 2, 3}
	v := New(b)
	owned := v.IntoOwned()

	b[0] = 9
	require.Equal(t, byte(1), owned.Bytes()[0], "IntoOwned must not alias the source slice")
}

func TestValueEqual(t *testing.T) {
	require.True(t, New([]byte{1, 2}).Equal(New([]byte{1, 2})))
	require.False(t, New([]byte{1, 2}).Equal(New([]byte{1, 3})))
}

func TestValueIsZero(t *testing.T) {
	require.True(t, Value{}.IsZero())
	require.False(t, New([]byte{}).IsZero())
}
