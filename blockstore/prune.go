package blockstore

import (
	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/internal/volatile"
)

// pruneState is the result of one remove_tip_impl transition, per
// spec.md §4.5's three-state machine.
type pruneState int

const (
	pruneNextTip pruneState = iota
	pruneHitPermanentStore
	pruneDone
)

// PruneBranch removes a maximal run of unreferenced ancestors starting at
// tipID, running to fixpoint inside a single transaction. Returns
// BranchNotFound if tipID does not name a current tip.
func (s *BlockStore) PruneBranch(tipID blockid.ID) error {
	var hitPermanent blockid.ID
	var hitPermanentSet bool

	err := s.volatile.Update(func(txn *volatile.Txn) error {
		isTip, err := txn.Has(volatile.PrefixBranchTips, tipID.Bytes())
		if err != nil {
			return err
		}
		if !isTip {
			return newErr(KindBranchNotFound, nil)
		}

		current := tipID
		for {
			state, next, err := s.removeTipImpl(txn, current)
			if err != nil {
				return err
			}
			switch state {
			case pruneDone:
				return nil
			case pruneHitPermanentStore:
				hitPermanent = next
				hitPermanentSet = true
				return nil
			case pruneNextTip:
				current = next
			}
		}
	})
	if err != nil {
		return wrapBackend(err)
	}

	if hitPermanentSet {
		return s.reinstateTipIfOrphaned(hitPermanent)
	}
	return nil
}

// removeTipImpl is one transition of spec.md §4.5's state machine,
// scoped to the running transaction txn.
func (s *BlockStore) removeTipImpl(txn *volatile.Txn, id blockid.ID) (pruneState, blockid.ID, error) {
	permPresent, err := s.permanent.ContainsKeyTxn(txn, id.Bytes())
	if err != nil {
		return 0, blockid.ID{}, err
	}
	if permPresent {
		return pruneDone, blockid.ID{}, nil
	}

	info, found, err := s.getBlockInfoTxn(txn, id.Bytes())
	if err != nil {
		return 0, blockid.ID{}, err
	}
	if !found {
		return 0, blockid.ID{}, newErr(KindBlockNotFound, nil)
	}
	if info.RefCount() != 0 {
		return pruneDone, blockid.ID{}, nil
	}

	if err := txn.Delete(volatile.PrefixBlocks, id.Bytes()); err != nil {
		return 0, blockid.ID{}, err
	}
	if err := txn.Delete(volatile.PrefixInfo, id.Bytes()); err != nil {
		return 0, blockid.ID{}, err
	}
	if err := txn.Delete(volatile.PrefixChainLengthIndex, chainLengthIndexKey(info.ChainLength(), id.Bytes())); err != nil {
		return 0, blockid.ID{}, err
	}
	if err := txn.Delete(volatile.PrefixBranchTips, id.Bytes()); err != nil {
		return 0, blockid.ID{}, err
	}

	parentID := info.ParentID()
	if parentID.IsRoot(s.rootID) {
		return pruneDone, blockid.ID{}, nil
	}

	parentPermanent, err := s.permanent.ContainsKeyTxn(txn, parentID.Bytes())
	if err != nil {
		return 0, blockid.ID{}, err
	}
	if parentPermanent {
		return pruneHitPermanentStore, parentID, nil
	}

	parentInfo, found, err := s.getBlockInfoTxn(txn, parentID.Bytes())
	if err != nil {
		return 0, blockid.ID{}, err
	}
	if !found {
		return 0, blockid.ID{}, newInconsistent(InconsistentMissingParentBlock, nil)
	}
	parentInfo.RemoveParentRef()
	if err := txn.Set(volatile.PrefixInfo, parentID.Bytes(), parentInfo.Serialize()); err != nil {
		return 0, blockid.ID{}, err
	}

	if parentInfo.ParentRefCount() != 0 {
		return pruneDone, blockid.ID{}, nil
	}

	if err := txn.Set(volatile.PrefixBranchTips, parentID.Bytes(), nil); err != nil {
		return 0, blockid.ID{}, err
	}
	if parentInfo.RefCount() != 0 {
		return pruneDone, blockid.ID{}, nil
	}
	return pruneNextTip, parentID, nil
}

// reinstateTipIfOrphaned implements spec.md §4.5's post-transaction step:
// a permanent block whose only volatile child was just pruned away may
// need to be re-listed as a tip, iff no volatile block at height+1
// exists. Tip listings are idempotent hints, so this need not share the
// deletion transaction.
func (s *BlockStore) reinstateTipIfOrphaned(permID blockid.ID) error {
	permInfo, found, err := s.permanent.GetBlockInfo(permID.Bytes())
	if err != nil {
		return wrapBackend(err)
	}
	if !found {
		return newInconsistent(InconsistentMissingPermanentBlock, nil)
	}

	hasChild, err := s.hasVolatileAtHeight(permInfo.ChainLength() + 1)
	if err != nil {
		return err
	}
	if hasChild {
		return nil
	}

	err = s.volatile.Update(func(txn *volatile.Txn) error {
		return txn.Set(volatile.PrefixBranchTips, permID.Bytes(), nil)
	})
	return wrapBackend(err)
}

func (s *BlockStore) hasVolatileAtHeight(chainLength uint32) (bool, error) {
	found := false
	err := s.volatile.View(func(txn *volatile.Txn) error {
		return txn.ScanPrefix(volatile.PrefixChainLengthIndex, chainLengthIndexKey(chainLength, nil), func(key, _ []byte) error {
			found = true
			return nil
		})
	})
	if err != nil {
		return false, wrapBackend(err)
	}
	return found, nil
}
