package blockstore

import (
	"github.com/catalyst-chain/chainstorage/blockid"
)

// Iterator yields block bytes by increasing chain length, from the block
// at height H-distance+1 to toBlock at height H, per spec.md §4.6.
type Iterator struct {
	store *BlockStore
	// volatilePath[h] is the id of the volatile-tier block at height h,
	// precomputed up front by walking parents from toBlock until hitting
	// the permanent tier or root, so Next need not re-walk on every call.
	volatilePath map[uint32]blockid.ID

	next uint32
	last uint32
	done bool
}

// Iter returns an Iterator yielding exactly distance blocks ending at
// toBlock. distance == 0 yields an immediately-exhausted iterator;
// distance == 1 yields only toBlock.
func (s *BlockStore) Iter(toBlock blockid.ID, distance uint32) (*Iterator, error) {
	info, err := s.GetBlockInfo(toBlock)
	if err != nil {
		return nil, err
	}
	h := info.ChainLength()
	if distance > h {
		return nil, newErr(KindCannotIterate, nil)
	}

	it := &Iterator{
		store:        s,
		volatilePath: make(map[uint32]blockid.ID),
	}
	if distance == 0 {
		it.done = true
		return it, nil
	}

	start := h - distance + 1
	it.next = start
	it.last = h

	current := toBlock
	currentInfo := info
	for {
		permPresent, err := s.permanent.ContainsKey(current.Bytes())
		if err != nil {
			return nil, wrapBackend(err)
		}
		if permPresent {
			break
		}
		it.volatilePath[currentInfo.ChainLength()] = current
		if currentInfo.ChainLength() == start || currentInfo.ParentID().IsRoot(s.rootID) {
			break
		}
		parentInfo, err := s.GetBlockInfo(currentInfo.ParentID())
		if err != nil {
			return nil, err
		}
		current = currentInfo.ParentID()
		currentInfo = parentInfo
	}

	return it, nil
}

// Next returns the next block in increasing chain-length order, or
// ok == false once distance blocks have been yielded. An error surfaces
// as (zero Value, false, err) and ends the iteration: every later call to
// Next returns ok == false with no error. Callers wanting to continue past
// an error construct a fresh Iterator.
func (it *Iterator) Next() (blockid.Value, bool, error) {
	if it.done || it.next > it.last {
		return blockid.Value{}, false, nil
	}
	height := it.next

	if v, found, err := it.store.permanent.GetBlockByChainLength(height); err != nil {
		it.done = true
		return blockid.Value{}, false, wrapBackend(err)
	} else if found {
		it.next++
		return v, true, nil
	}

	id, ok := it.volatilePath[height]
	if !ok {
		it.done = true
		return blockid.Value{}, false, newInconsistent(InconsistentChainLength, nil)
	}
	v, err := it.store.GetBlock(id)
	if err != nil {
		it.done = true
		return blockid.Value{}, false, err
	}
	it.next++
	return v, true, nil
}
