package blockinfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-chain/chainstorage/blockid"
)

func TestSerializeRoundTrip(t *testing.T) {
	id := blockid.NewID([]byte{1, 2, 3, 4})
	parent := blockid.NewID([]byte{5, 6, 7, 8})
	info := New(id, parent, 42)
	info.AddParentRef()
	info.AddParentRef()
	info.AddTagRef()

	decoded, err := Deserialize(info.Serialize())
	require.NoError(t, err)

	require.True(t, decoded.ID().Equal(id.Value))
	require.True(t, decoded.ParentID().Equal(parent.Value))
	require.Equal(t, uint32(42), decoded.ChainLength())
	require.Equal(t, uint32(2), decoded.ParentRefCount())
	require.Equal(t, uint32(1), decoded.TagRefCount())
	require.Equal(t, uint32(3), decoded.RefCount())
}

func TestDeserializeRejectsTruncatedRecord(t *testing.T) {
	_, err := Deserialize([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRefCountMutators(t *testing.T) {
	info := New(blockid.NewID([]byte{1}), blockid.NewID([]byte{0}), 1)
	require.Equal(t, uint32(0), info.RefCount())

	info.AddParentRef()
	require.Equal(t, uint32(1), info.ParentRefCount())
	info.RemoveParentRef()
	require.Equal(t, uint32(0), info.ParentRefCount())

	info.AddTagRef()
	require.Equal(t, uint32(1), info.TagRefCount())
	info.RemoveTagRef()
	require.Equal(t, uint32(0), info.TagRefCount())
}
