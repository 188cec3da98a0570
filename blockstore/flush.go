package blockstore

import (
	"encoding/binary"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockinfo"
	"github.com/catalyst-chain/chainstorage/internal/volatile"
)

// FlushToPermanentStore migrates the chain from the root (or the current
// permanent frontier) up to toBlock into the permanent tier, per
// spec.md §4.7. A toBlock already fully settled in the permanent tier is
// a no-op.
func (s *BlockStore) FlushToPermanentStore(toBlock blockid.ID) error {
	collected, err := s.collectUnflushedAncestry(toBlock)
	if err != nil {
		return err
	}
	if len(collected) == 0 {
		return nil
	}

	ids := make([][]byte, len(collected))
	blocks := make([][]byte, len(collected))
	for i, info := range collected {
		b, err := s.GetBlock(info.ID())
		if err != nil {
			return err
		}
		ids[i] = info.ID().Bytes()
		blocks[i] = b.Bytes()
	}

	startChainLength := collected[0].ChainLength()
	if err := s.permanent.AppendBlocks(startChainLength, ids, blocks); err != nil {
		return wrapBackend(err)
	}

	err = s.volatile.Update(func(txn *volatile.Txn) error {
		for i, info := range collected {
			var idxVal [4]byte
			binary.LittleEndian.PutUint32(idxVal[:], info.ChainLength())
			if err := txn.Set(volatile.PrefixPermanentIndex, ids[i], idxVal[:]); err != nil {
				return err
			}
			if err := txn.Delete(volatile.PrefixBlocks, ids[i]); err != nil {
				return err
			}
			if err := txn.Delete(volatile.PrefixInfo, ids[i]); err != nil {
				return err
			}
			if err := txn.Delete(volatile.PrefixChainLengthIndex, chainLengthIndexKey(info.ChainLength(), ids[i])); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapBackend(err)
}

// collectUnflushedAncestry walks parents from toBlock through the
// volatile tier, collecting BlockInfo entries until hitting the root or
// a block already in the permanent tier (spec.md §4.7 step 1), then
// reverses the result into chronological order (step 3).
func (s *BlockStore) collectUnflushedAncestry(toBlock blockid.ID) ([]*blockinfo.Info, error) {
	var reverseOrder []*blockinfo.Info

	current := toBlock
	for {
		if current.IsRoot(s.rootID) {
			break
		}
		permPresent, err := s.permanent.ContainsKey(current.Bytes())
		if err != nil {
			return nil, wrapBackend(err)
		}
		if permPresent {
			break
		}
		info, err := s.GetBlockInfo(current)
		if err != nil {
			return nil, err
		}
		reverseOrder = append(reverseOrder, info)
		current = info.ParentID()
	}

	for i, j := 0, len(reverseOrder)-1; i < j; i, j = i+1, j-1 {
		reverseOrder[i], reverseOrder[j] = reverseOrder[j], reverseOrder[i]
	}
	return reverseOrder, nil
}
