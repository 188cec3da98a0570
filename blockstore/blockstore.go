// Package blockstore implements the two-tier block storage engine: a
// mutable, branchable volatile tier backed by badger, and an append-only
// permanent tier that sealed history is migrated into by flush. This
// file holds the façade type (C5) and the operations that touch only one
// tier or a single transaction; ancestor.go, prune.go, flush.go, and
// iterator.go hold the larger algorithms.
package blockstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockinfo"
	"github.com/catalyst-chain/chainstorage/internal/permanent"
	"github.com/catalyst-chain/chainstorage/internal/volatile"
)

// BlockStore is the public façade. It is a small struct of pointers plus
// an immutable root/length pair, so copying it by value is cheap and all
// copies share the underlying engine and permanent-file handles — the
// concurrency model spec.md §5 requires.
type BlockStore struct {
	volatile  *volatile.Engine
	permanent *permanent.Store
	rootID    blockid.ID
	idLength  int
	log       *logrus.Entry

	closeOnce *sync.Once
}

// Open opens (creating as needed) a store rooted at path, with rootID as
// the sentinel parent of every first block; the length of rootID fixes
// the length of every block id in the store.
func Open(path string, rootID blockid.ID) (*BlockStore, error) {
	volDir := filepath.Join(path, "volatile")
	permDir := filepath.Join(path, "permanent")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, newErr(KindOpen, err)
	}
	eng, err := volatile.Open(volDir)
	if err != nil {
		return nil, newErr(KindOpen, err)
	}
	perm, err := permanent.Open(permDir, eng, rootID)
	if err != nil {
		eng.Close()
		return nil, newErr(KindOpen, err)
	}
	return newBlockStore(eng, perm, rootID)
}

// OpenInMemory opens a non-persistent store, useful for tests and
// short-lived tooling (spec.md §4.3's open_in_memory).
func OpenInMemory(rootID blockid.ID) (*BlockStore, error) {
	eng, err := volatile.OpenInMemory()
	if err != nil {
		return nil, newErr(KindOpen, err)
	}
	perm, err := permanent.OpenInMemory(eng, rootID)
	if err != nil {
		eng.Close()
		return nil, newErr(KindOpen, err)
	}
	return newBlockStore(eng, perm, rootID)
}

func newBlockStore(eng *volatile.Engine, perm *permanent.Store, rootID blockid.ID) (*BlockStore, error) {
	s := &BlockStore{
		volatile:  eng,
		permanent: perm,
		rootID:    rootID,
		idLength:  rootID.Len(),
		log:       logrus.WithField("component", "blockstore"),
		closeOnce: new(sync.Once),
	}
	if err := s.reconcileAfterCrash(); err != nil {
		return nil, err
	}
	return s, nil
}

// reconcileAfterCrash implements spec.md §4.7's crash-safety recovery:
// if the process died between a permanent AppendBlocks and the volatile
// transaction that deletes the migrated entries, both copies exist on
// reopen. Permanent is authoritative: any sealed block missing from the
// shared id → chain-length index gets its entry written, and any volatile
// entry whose id is already sealed in the permanent tier is removed.
func (s *BlockStore) reconcileAfterCrash() error {
	records := s.permanent.Records()
	if len(records) == 0 {
		return nil
	}
	return s.volatile.Update(func(txn *volatile.Txn) error {
		for _, rec := range records {
			indexed, err := txn.Has(volatile.PrefixPermanentIndex, rec.ID)
			if err != nil {
				return err
			}
			if !indexed {
				var idxVal [4]byte
				binary.LittleEndian.PutUint32(idxVal[:], rec.ChainLength)
				if err := txn.Set(volatile.PrefixPermanentIndex, rec.ID, idxVal[:]); err != nil {
					return err
				}
			}
			has, err := txn.Has(volatile.PrefixBlocks, rec.ID)
			if err != nil {
				return err
			}
			hasInfo, err := txn.Has(volatile.PrefixInfo, rec.ID)
			if err != nil {
				return err
			}
			if !has && !hasInfo {
				continue
			}
			s.log.WithField("id", blockid.NewID(rec.ID).String()).
				Warn("reconciling volatile duplicate left by an interrupted flush")
			if err := txn.Delete(volatile.PrefixBlocks, rec.ID); err != nil {
				return err
			}
			if err := txn.Delete(volatile.PrefixInfo, rec.ID); err != nil {
				return err
			}
			if err := txn.Delete(volatile.PrefixChainLengthIndex, chainLengthIndexKey(rec.ChainLength, rec.ID)); err != nil {
				return err
			}
			if err := txn.Delete(volatile.PrefixBranchTips, rec.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the engine and permanent-tier file handles. Safe to
// call more than once.
func (s *BlockStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if permErr := s.permanent.Close(); permErr != nil {
			err = wrapBackend(permErr)
		}
		if volErr := s.volatile.Close(); volErr != nil && err == nil {
			err = wrapBackend(volErr)
		}
	})
	return err
}

// RootID returns the configured root sentinel.
func (s *BlockStore) RootID() blockid.ID { return s.rootID }

func chainLengthIndexKey(chainLength uint32, id []byte) []byte {
	key := make([]byte, 4+len(id))
	binary.BigEndian.PutUint32(key[:4], chainLength)
	copy(key[4:], id)
	return key
}

// PutBlock inserts a block and its metadata. Fails BlockAlreadyPresent if
// the id is present in either tier, MissingParent if info.ParentID() is
// not the root sentinel and is absent from both tiers.
func (s *BlockStore) PutBlock(block blockid.Value, info *blockinfo.Info) error {
	id := info.ID()
	if id.IsRoot(s.rootID) {
		return newErr(KindBlockAlreadyPresent, nil)
	}

	err := s.volatile.Update(func(txn *volatile.Txn) error {
		present, err := txn.Has(volatile.PrefixBlocks, id.Bytes())
		if err != nil {
			return err
		}
		if present {
			return newErr(KindBlockAlreadyPresent, nil)
		}
		permPresent, err := s.permanent.ContainsKeyTxn(txn, id.Bytes())
		if err != nil {
			return err
		}
		if permPresent {
			return newErr(KindBlockAlreadyPresent, nil)
		}

		parentID := info.ParentID()
		parentIsRoot := parentID.IsRoot(s.rootID)
		var parentInfoBytes []byte
		if !parentIsRoot {
			parentInfoBytes, err = txn.Get(volatile.PrefixInfo, parentID.Bytes())
			if err != nil && err != volatile.ErrKeyNotFound {
				return err
			}
			if err == volatile.ErrKeyNotFound {
				permParent, permErr := s.permanent.ContainsKeyTxn(txn, parentID.Bytes())
				if permErr != nil {
					return permErr
				}
				if !permParent {
					return newErr(KindMissingParent, nil)
				}
			}
		}

		if err := txn.Set(volatile.PrefixBlocks, id.Bytes(), block.Bytes()); err != nil {
			return err
		}
		if err := txn.Set(volatile.PrefixInfo, id.Bytes(), info.Serialize()); err != nil {
			return err
		}
		if err := txn.Set(volatile.PrefixChainLengthIndex, chainLengthIndexKey(info.ChainLength(), id.Bytes()), nil); err != nil {
			return err
		}
		if err := txn.Set(volatile.PrefixBranchTips, id.Bytes(), nil); err != nil {
			return err
		}

		if !parentIsRoot && parentInfoBytes != nil {
			parentInfo, err := blockinfo.Deserialize(parentInfoBytes)
			if err != nil {
				return newInconsistent(InconsistentBlockInfo, err)
			}
			parentInfo.AddParentRef()
			if err := txn.Set(volatile.PrefixInfo, parentID.Bytes(), parentInfo.Serialize()); err != nil {
				return err
			}
			// The parent now has a child; it is no longer a tip.
			if err := txn.Delete(volatile.PrefixBranchTips, parentID.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapBackend(err)
}

// GetBlock returns the block bytes for id: permanent first, then
// volatile, per spec.md §4.3's dispatch order.
func (s *BlockStore) GetBlock(id blockid.ID) (blockid.Value, error) {
	v, found, err := s.permanent.GetBlock(id.Bytes())
	if err != nil {
		return blockid.Value{}, wrapBackend(err)
	}
	if found {
		return v, nil
	}
	var out blockid.Value
	err = s.volatile.View(func(txn *volatile.Txn) error {
		b, err := txn.Get(volatile.PrefixBlocks, id.Bytes())
		if err == volatile.ErrKeyNotFound {
			return newErr(KindBlockNotFound, nil)
		}
		if err != nil {
			return err
		}
		out = blockid.New(b)
		return nil
	})
	if err != nil {
		return blockid.Value{}, wrapBackend(err)
	}
	return out, nil
}

// GetBlockInfo returns metadata for id, dispatching permanent-then-volatile
// as GetBlock does.
func (s *BlockStore) GetBlockInfo(id blockid.ID) (*blockinfo.Info, error) {
	info, found, err := s.permanent.GetBlockInfo(id.Bytes())
	if err != nil {
		return nil, wrapBackend(err)
	}
	if found {
		return info, nil
	}
	var out *blockinfo.Info
	err = s.volatile.View(func(txn *volatile.Txn) error {
		b, err := txn.Get(volatile.PrefixInfo, id.Bytes())
		if err == volatile.ErrKeyNotFound {
			return newErr(KindBlockNotFound, nil)
		}
		if err != nil {
			return err
		}
		out, err = blockinfo.Deserialize(b)
		if err != nil {
			return newInconsistent(InconsistentBlockInfo, err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapBackend(err)
	}
	return out, nil
}

// getBlockInfoTxn is GetBlockInfo scoped to a running volatile
// transaction, used internally by prune/flush which must observe a
// single consistent snapshot across several lookups.
func (s *BlockStore) getBlockInfoTxn(txn *volatile.Txn, id []byte) (*blockinfo.Info, bool, error) {
	b, err := txn.Get(volatile.PrefixInfo, id)
	if err == volatile.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	info, err := blockinfo.Deserialize(b)
	if err != nil {
		return nil, false, newInconsistent(InconsistentBlockInfo, err)
	}
	return info, true, nil
}

// GetBlocksByChainLength returns every block at height n. If the
// permanent tier has a block at that height, it returns a singleton
// (permanent history is canonical at its heights); otherwise it returns
// every volatile block at that height.
func (s *BlockStore) GetBlocksByChainLength(n uint32) ([]blockid.Value, error) {
	if v, found, err := s.permanent.GetBlockByChainLength(n); err != nil {
		return nil, wrapBackend(err)
	} else if found {
		return []blockid.Value{v}, nil
	}

	var out []blockid.Value
	err := s.volatile.View(func(txn *volatile.Txn) error {
		return txn.ScanPrefix(volatile.PrefixChainLengthIndex, chainLengthIndexKey(n, nil), func(key, _ []byte) error {
			id := append([]byte(nil), key[4:]...)
			b, err := txn.Get(volatile.PrefixBlocks, id)
			if err != nil {
				return err
			}
			out = append(out, blockid.New(b))
			return nil
		})
	})
	if err != nil {
		return nil, wrapBackend(err)
	}
	return out, nil
}

// PutTag atomically points name at id, adjusting tag_ref_count on the new
// and (if replaced) old targets when they are volatile. The target block
// must exist in some tier. Calling PutTag(name, id) when name already
// points at id is a no-op: ref counts are left untouched so repeated
// calls stay idempotent.
func (s *BlockStore) PutTag(name string, id blockid.ID) error {
	err := s.volatile.Update(func(txn *volatile.Txn) error {
		newInVolatile, newInfo, err := s.loadInfoForTagTxn(txn, id.Bytes())
		if err != nil {
			return err
		}
		if newInfo == nil && !newInVolatile {
			permPresent, err := s.permanent.ContainsKeyTxn(txn, id.Bytes())
			if err != nil {
				return err
			}
			if !permPresent {
				return newErr(KindBlockNotFound, nil)
			}
		}

		oldID, err := txn.Get(volatile.PrefixTags, []byte(name))
		hadOld := err == nil
		if err != nil && err != volatile.ErrKeyNotFound {
			return err
		}
		retargetsSameBlock := hadOld && blockid.New(oldID).Equal(id.Value)

		if err := txn.Set(volatile.PrefixTags, []byte(name), id.Bytes()); err != nil {
			return err
		}

		// Re-pointing a tag at the block it already names is a no-op on
		// ref counts: put_tag(t, x) called twice must leave the same
		// observable ref-count state as calling it once.
		if retargetsSameBlock {
			return nil
		}

		if newInfo != nil {
			newInfo.AddTagRef()
			if err := txn.Set(volatile.PrefixInfo, id.Bytes(), newInfo.Serialize()); err != nil {
				return err
			}
		}

		if hadOld {
			oldInfo, found, err := s.getBlockInfoTxn(txn, oldID)
			if err != nil {
				return err
			}
			if found {
				oldInfo.RemoveTagRef()
				if err := txn.Set(volatile.PrefixInfo, oldID, oldInfo.Serialize()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrapBackend(err)
}

func (s *BlockStore) loadInfoForTagTxn(txn *volatile.Txn, id []byte) (bool, *blockinfo.Info, error) {
	info, found, err := s.getBlockInfoTxn(txn, id)
	if err != nil {
		return false, nil, err
	}
	return found, info, nil
}

// GetTag returns the block id name currently points at, if any.
func (s *BlockStore) GetTag(name string) (blockid.ID, bool, error) {
	var (
		id    blockid.ID
		found bool
	)
	err := s.volatile.View(func(txn *volatile.Txn) error {
		b, err := txn.Get(volatile.PrefixTags, []byte(name))
		if err == volatile.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		id = blockid.NewID(b)
		found = true
		return nil
	})
	if err != nil {
		return blockid.ID{}, false, wrapBackend(err)
	}
	return id, found, nil
}

// GetTipsIDs returns every id currently listed as a branch tip.
func (s *BlockStore) GetTipsIDs() ([]blockid.ID, error) {
	var out []blockid.ID
	err := s.volatile.View(func(txn *volatile.Txn) error {
		return txn.IterateAll(volatile.PrefixBranchTips, func(key []byte) error {
			out = append(out, blockid.NewID(append([]byte(nil), key...)))
			return nil
		})
	})
	if err != nil {
		return nil, wrapBackend(err)
	}
	return out, nil
}

// BlockExists reports whether id is present in either tier.
func (s *BlockStore) BlockExists(id blockid.ID) (bool, error) {
	present, err := s.permanent.ContainsKey(id.Bytes())
	if err != nil {
		return false, wrapBackend(err)
	}
	if present {
		return true, nil
	}
	err = s.volatile.View(func(txn *volatile.Txn) error {
		var err error
		present, err = txn.Has(volatile.PrefixBlocks, id.Bytes())
		return err
	})
	if err != nil {
		return false, wrapBackend(err)
	}
	return present, nil
}
