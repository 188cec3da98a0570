package blockstore

import (
	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockinfo"
	"github.com/catalyst-chain/chainstorage/internal/volatile"
)

// IsAncestor implements spec.md §4.4: whether anc is an ancestor of desc,
// and if so at what distance (desc.chain_length - anc.chain_length).
func (s *BlockStore) IsAncestor(anc, desc blockid.ID) (distance uint32, ok bool, err error) {
	if anc.Equal(desc.Value) {
		return 0, true, nil
	}
	if anc.IsRoot(s.rootID) {
		descInfo, err := s.GetBlockInfo(desc)
		if err != nil {
			return 0, false, err
		}
		return descInfo.ChainLength(), true, nil
	}

	descInfo, err := s.GetBlockInfo(desc)
	if err != nil {
		return 0, false, err
	}

	if permInfo, found, err := s.permanent.GetBlockInfo(anc.Bytes()); err != nil {
		return 0, false, wrapBackend(err)
	} else if found {
		if permInfo.ChainLength() < descInfo.ChainLength() {
			return descInfo.ChainLength() - permInfo.ChainLength(), true, nil
		}
		return 0, false, nil
	}

	var (
		ancInfo   *blockinfo.Info
		ancFound  bool
		uniqueErr error
	)
	err = s.volatile.View(func(txn *volatile.Txn) error {
		ancInfo, ancFound, uniqueErr = s.getBlockInfoTxn(txn, anc.Bytes())
		return uniqueErr
	})
	if err != nil {
		return 0, false, wrapBackend(err)
	}
	if !ancFound {
		return 0, false, newErr(KindBlockNotFound, nil)
	}
	if ancInfo.ChainLength() >= descInfo.ChainLength() {
		return 0, false, nil
	}

	if descInfo.ParentID().Equal(anc.Value) {
		return 1, true, nil
	}

	unique, uerr := s.uniqueVolatileAtHeight(ancInfo.ChainLength())
	if uerr != nil {
		return 0, false, uerr
	}
	if unique {
		return descInfo.ChainLength() - ancInfo.ChainLength(), true, nil
	}

	current := descInfo
	steps := uint32(0)
	for {
		if current.ParentID().IsRoot(s.rootID) {
			return 0, false, nil
		}
		if current.ParentID().Equal(anc.Value) {
			return steps + 1, true, nil
		}
		parentInfo, err := s.GetBlockInfo(current.ParentID())
		if err != nil {
			if IsKind(err, KindBlockNotFound) {
				return 0, false, nil
			}
			return 0, false, err
		}
		current = parentInfo
		steps++
		if current.ChainLength() <= ancInfo.ChainLength() {
			return 0, false, nil
		}
	}
}

// uniqueVolatileAtHeight reports whether the volatile chain_length_index
// has exactly one entry at chainLength — the §4.4/§4.4 fast path that
// lets ancestor queries skip a full parent walk, since a unique entry at
// a given height is on every branch passing through it.
func (s *BlockStore) uniqueVolatileAtHeight(chainLength uint32) (bool, error) {
	count := 0
	err := s.volatile.View(func(txn *volatile.Txn) error {
		return txn.ScanPrefix(volatile.PrefixChainLengthIndex, chainLengthIndexKey(chainLength, nil), func(key, _ []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return false, wrapBackend(err)
	}
	return count == 1, nil
}

// GetNthAncestor returns the BlockInfo of the ancestor of id that is n
// chain-lengths below it. It is implemented in terms of WalkToNthAncestor
// with a no-op callback, per SPEC_FULL.md §10.1.
func (s *BlockStore) GetNthAncestor(id blockid.ID, n uint32) (*blockinfo.Info, error) {
	return s.WalkToNthAncestor(id, n, func(*blockinfo.Info) {})
}

// WalkToNthAncestor returns the BlockInfo of the ancestor of id that is n
// chain-lengths below it, invoking visit on every intermediate BlockInfo
// it passes through along the way (including the starting block, not
// including the final ancestor). When the target height is found directly
// in the permanent tier, or is held by the only volatile block at that
// height, the ancestor is returned without a walk and visit is not called
// at all. This mirrors the original chain-storage
// crate's for_path_to_nth_ancestor, which upstream callers used to
// populate skip-list-style back-link caches while walking.
func (s *BlockStore) WalkToNthAncestor(id blockid.ID, n uint32, visit func(*blockinfo.Info)) (*blockinfo.Info, error) {
	info, err := s.GetBlockInfo(id)
	if err != nil {
		return nil, err
	}
	if n > info.ChainLength() {
		return nil, newErr(KindCannotIterate, nil)
	}
	target := info.ChainLength() - n

	if permInfo, found, err := s.permanent.GetBlockInfoByChainLength(target); err != nil {
		return nil, wrapBackend(err)
	} else if found {
		return permInfo, nil
	}

	if unique, err := s.uniqueVolatileAtHeight(target); err != nil {
		return nil, err
	} else if unique {
		var out *blockinfo.Info
		err := s.volatile.View(func(txn *volatile.Txn) error {
			return txn.ScanPrefix(volatile.PrefixChainLengthIndex, chainLengthIndexKey(target, nil), func(key, _ []byte) error {
				i, found, err := s.getBlockInfoTxn(txn, key[4:])
				if err != nil {
					return err
				}
				if !found {
					return newInconsistent(InconsistentBlockInfo, nil)
				}
				out = i
				return nil
			})
		})
		if err != nil {
			return nil, wrapBackend(err)
		}
		return out, nil
	}

	current := info
	for current.ChainLength() > target {
		visit(current)
		parentInfo, err := s.GetBlockInfo(current.ParentID())
		if err != nil {
			return nil, err
		}
		current = parentInfo
	}
	return current, nil
}
