package permanent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/internal/volatile"
)

func setIndex(t *testing.T, eng *volatile.Engine, id []byte, chainLength uint32) {
	t.Helper()
	err := eng.Update(func(txn *volatile.Txn) error {
		var b [4]byte
		b[0] = byte(chainLength)
		return txn.Set(volatile.PrefixPermanentIndex, id, b[:])
	})
	require.NoError(t, err)
}

func TestAppendAndReadBack(t *testing.T) {
	eng, err := volatile.OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	rootID := blockid.NewID([]byte{0})
	store, err := OpenInMemory(eng, rootID)
	require.NoError(t, err)

	id1 := []byte{1}
	id2 := []byte{2}
	require.NoError(t, store.AppendBlocks(1, [][]byte{id1}, [][]byte{[]byte("block-one")}))
	setIndex(t, eng, id1, 1)
	require.NoError(t, store.AppendBlocks(2, [][]byte{id2}, [][]byte{[]byte("block-two")}))
	setIndex(t, eng, id2, 2)

	v, found, err := store.GetBlock(id1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "block-one", string(v.Bytes()))

	v2, found, err := store.GetBlockByChainLength(2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "block-two", string(v2.Bytes()))

	info, found, err := store.GetBlockInfoByChainLength(1)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, info.ParentID().Equal(rootID.Value))

	info2, found, err := store.GetBlockInfoByChainLength(2)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, info2.ParentID().Equal(blockid.NewID(id1).Value))
}

func TestAppendRejectsNonMonotonicStart(t *testing.T) {
	eng, err := volatile.OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	rootID := blockid.NewID([]byte{0})
	store, err := OpenInMemory(eng, rootID)
	require.NoError(t, err)

	id1 := []byte{1}
	require.NoError(t, store.AppendBlocks(1, [][]byte{id1}, [][]byte{[]byte("a")}))
	setIndex(t, eng, id1, 1)

	err = store.AppendBlocks(3, [][]byte{{2}}, [][]byte{[]byte("b")})
	require.Error(t, err)
}

func TestAppendIsIdempotentOnExactReplay(t *testing.T) {
	eng, err := volatile.OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	rootID := blockid.NewID([]byte{0})
	store, err := OpenInMemory(eng, rootID)
	require.NoError(t, err)

	id1 := []byte{1}
	require.NoError(t, store.AppendBlocks(1, [][]byte{id1}, [][]byte{[]byte("a")}))
	setIndex(t, eng, id1, 1)

	require.NoError(t, store.AppendBlocks(1, [][]byte{id1}, [][]byte{[]byte("a")}))

	max, ok := store.MaxChainLength()
	require.True(t, ok)
	require.Equal(t, uint32(1), max)
}

func TestContainsKey(t *testing.T) {
	eng, err := volatile.OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	rootID := blockid.NewID([]byte{0})
	store, err := OpenInMemory(eng, rootID)
	require.NoError(t, err)

	id1 := []byte{1}
	present, err := store.ContainsKey(id1)
	require.NoError(t, err)
	require.False(t, present)

	require.NoError(t, store.AppendBlocks(1, [][]byte{id1}, [][]byte{[]byte("a")}))
	setIndex(t, eng, id1, 1)

	present, err = store.ContainsKey(id1)
	require.NoError(t, err)
	require.True(t, present)
}
