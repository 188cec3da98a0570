package blockstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockinfo"
)

var rootID = blockid.NewID([]byte{0x00})

func id(n byte) blockid.ID { return blockid.NewID([]byte{n}) }

func putLinearChain(t *testing.T, s *BlockStore, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		info := blockinfo.New(id(byte(i)), id(byte(i-1)), uint32(i))
		require.NoError(t, s.PutBlock(blockid.New([]byte{byte(i)}), info))
	}
}

func TestPutBlockAndGetBlock(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	info := blockinfo.New(id(1), rootID, 1)
	require.NoError(t, s.PutBlock(blockid.New([]byte("payload")), info))

	v, err := s.GetBlock(id(1))
	require.NoError(t, err)
	require.Equal(t, "payload", string(v.Bytes()))

	got, err := s.GetBlockInfo(id(1))
	require.NoError(t, err)
	require.Equal(t, uint32(1), got.ChainLength())
}

func TestPutBlockAlreadyPresent(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	info := blockinfo.New(id(1), rootID, 1)
	require.NoError(t, s.PutBlock(blockid.New([]byte("a")), info))

	err = s.PutBlock(blockid.New([]byte("b")), blockinfo.New(id(1), rootID, 1))
	require.True(t, IsKind(err, KindBlockAlreadyPresent))
}

func TestPutBlockMissingParent(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	err = s.PutBlock(blockid.New([]byte("a")), blockinfo.New(id(2), id(1), 2))
	require.True(t, IsKind(err, KindMissingParent))
}

func TestPutBlockRejectsRootSentinelAsID(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	err = s.PutBlock(blockid.New([]byte("a")), blockinfo.New(rootID, rootID, 0))
	require.True(t, IsKind(err, KindBlockAlreadyPresent))
}

// TestLinearChain is spec scenario S1.
func TestLinearChain(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 10)

	tips, err := s.GetTipsIDs()
	require.NoError(t, err)
	require.Len(t, tips, 1)
	require.True(t, tips[0].Equal(id(10).Value))

	dist, ok, err := s.IsAncestor(id(3), id(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(4), dist)

	anc, err := s.GetNthAncestor(id(7), 4)
	require.NoError(t, err)
	require.True(t, anc.ID().Equal(id(3).Value))
}

// TestForkAndPrune is spec scenario S2.
func TestForkAndPrune(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 10)

	require.NoError(t, s.PutBlock(blockid.New([]byte("6prime")), blockinfo.New(id(100), id(5), 6)))
	require.NoError(t, s.PutBlock(blockid.New([]byte("7prime")), blockinfo.New(id(101), id(100), 7)))

	tips, err := s.GetTipsIDs()
	require.NoError(t, err)
	ids := make(map[byte]bool)
	for _, tip := range tips {
		ids[tip.Bytes()[0]] = true
	}
	require.True(t, ids[10])
	require.True(t, ids[101])
	require.Len(t, ids, 2)

	require.NoError(t, s.PruneBranch(id(101)))

	tips, err = s.GetTipsIDs()
	require.NoError(t, err)
	require.Len(t, tips, 1)
	require.True(t, tips[0].Equal(id(10).Value))

	_, err = s.GetBlock(id(101))
	require.True(t, IsKind(err, KindBlockNotFound))

	_, err = s.GetBlock(id(5))
	require.NoError(t, err)
}

// TestTagPreventsPruning is spec scenario S3.
func TestTagPreventsPruning(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 10)
	require.NoError(t, s.PutBlock(blockid.New([]byte("6prime")), blockinfo.New(id(100), id(5), 6)))
	require.NoError(t, s.PutBlock(blockid.New([]byte("7prime")), blockinfo.New(id(101), id(100), 7)))

	require.NoError(t, s.PutTag("keep", id(101)))

	require.NoError(t, s.PruneBranch(id(101)))

	_, err = s.GetBlock(id(101))
	require.NoError(t, err, "tagged tip must survive pruning")

	tagged, found, err := s.GetTag("keep")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, tagged.Equal(id(101).Value))
}

// TestFlushAndRead is spec scenario S4.
func TestFlushAndRead(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 10)

	require.NoError(t, s.FlushToPermanentStore(id(5)))

	for i := byte(1); i <= 5; i++ {
		v, err := s.GetBlock(id(i))
		require.NoError(t, err)
		require.Equal(t, []byte{i}, v.Bytes())
	}

	blocks, err := s.GetBlocksByChainLength(3)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []byte{3}, blocks[0].Bytes())

	require.NoError(t, s.FlushToPermanentStore(id(5)), "second flush must be a no-op")
}

// TestAncestorAcrossTiers is spec scenario S5.
func TestAncestorAcrossTiers(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 10)
	require.NoError(t, s.FlushToPermanentStore(id(5)))
	require.NoError(t, s.PutBlock(blockid.New([]byte{11}), blockinfo.New(id(11), id(10), 11)))

	dist, ok, err := s.IsAncestor(id(3), id(11))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(8), dist)
}

// TestIteratorSpansTiers is spec scenario S6.
func TestIteratorSpansTiers(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 10)
	require.NoError(t, s.FlushToPermanentStore(id(5)))

	it, err := s.Iter(id(8), 6)
	require.NoError(t, err)

	var got []byte
	for {
		v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v.Bytes()[0])
	}
	require.Equal(t, []byte{3, 4, 5, 6, 7, 8}, got)
}

func TestGetBlocksByChainLengthUnion(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 5)
	require.NoError(t, s.PutBlock(blockid.New([]byte("5prime")), blockinfo.New(id(50), id(4), 5)))

	blocks, err := s.GetBlocksByChainLength(5)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
}

func TestPutTagIdempotence(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 3)
	require.NoError(t, s.PutTag("t", id(2)))
	require.NoError(t, s.PutTag("t", id(2)))

	info, err := s.GetBlockInfo(id(2))
	require.NoError(t, err)
	require.Equal(t, uint32(1), info.TagRefCount())
}

func TestPutTagRetargetDecrementsOldTarget(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 3)
	require.NoError(t, s.PutTag("t", id(2)))
	require.NoError(t, s.PutTag("t", id(3)))

	oldInfo, err := s.GetBlockInfo(id(2))
	require.NoError(t, err)
	require.Equal(t, uint32(0), oldInfo.TagRefCount())

	newInfo, err := s.GetBlockInfo(id(3))
	require.NoError(t, err)
	require.Equal(t, uint32(1), newInfo.TagRefCount())
}

func TestPruneNonexistentTipFails(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 3)
	err = s.PruneBranch(id(99))
	require.True(t, IsKind(err, KindBranchNotFound))
}

func TestBlockExists(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 3)

	ok, err := s.BlockExists(id(2))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.BlockExists(id(99))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterZeroDistanceIsEmpty(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 3)
	it, err := s.Iter(id(3), 0)
	require.NoError(t, err)

	_, ok, err := it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterDistanceOneYieldsOnlyToBlock(t *testing.T) {
	s, err := OpenInMemory(rootID)
	require.NoError(t, err)
	defer s.Close()

	putLinearChain(t, s, 3)
	it, err := s.Iter(id(3), 1)
	require.NoError(t, err)

	v, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{3}, v.Bytes())

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
