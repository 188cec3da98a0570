// Package permanent implements the append-only tier described in
// spec.md §4.2: a contiguous file of sealed block payloads, a fixed-width
// chain-length → (offset, length) index, and — via the shared volatile
// engine — the id → chain-length secondary index that lets volatile and
// permanent reads dispatch through the same lookup path.
package permanent

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockinfo"
	"github.com/catalyst-chain/chainstorage/internal/volatile"
)

// Store is the permanent tier. It is cheap to share: every access to the
// sealed records and block bytes takes a lock internally (id lookups go
// through the shared engine's own transactions), and the type is normally
// embedded behind a pointer shared by every clone of the owning
// BlockStore.
type Store struct {
	mu       sync.RWMutex
	idx      *volatile.Engine
	rootID   blockid.ID
	idLength int

	blocks  blockBytes
	lengths *lengthsIndex

	records []record // records[i] is chain_length = c0+i
	c0      uint32
	hasData bool
}

// Open opens (creating if necessary) the permanent tier rooted at dir,
// sharing idx (the volatile engine) for the id → chain-length index.
func Open(dir string, idx *volatile.Engine, rootID blockid.ID) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "permanent: creating directory")
	}
	fb, err := openFileBackend(filepath.Join(dir, "blocks.dat"))
	if err != nil {
		return nil, err
	}
	li, records, err := openLengthsIndex(filepath.Join(dir, "lengths.idx"), rootID.Len())
	if err != nil {
		fb.Close()
		return nil, err
	}
	return newStore(idx, rootID, fb, li, records)
}

// OpenInMemory opens a non-persistent permanent tier, for tests and
// short-lived tooling.
func OpenInMemory(idx *volatile.Engine, rootID blockid.ID) (*Store, error) {
	return newStore(idx, rootID, &memBackend{}, &lengthsIndex{idLength: rootID.Len()}, nil)
}

func newStore(idx *volatile.Engine, rootID blockid.ID, blocks blockBytes, lengths *lengthsIndex, records []record) (*Store, error) {
	s := &Store{
		idx:      idx,
		rootID:   rootID,
		idLength: rootID.Len(),
		blocks:   blocks,
		lengths:  lengths,
		records:  records,
	}
	if len(records) > 0 {
		s.hasData = true
		// c0 is recovered from the shared secondary index rather than
		// assumed to be zero, so a store that was opened, flushed,
		// pruned back down to nothing in the volatile tier and then
		// reopened still reports the right starting height.
		var firstChainLength uint32
		err := idx.View(func(txn *volatile.Txn) error {
			v, err := txn.Get(volatile.PrefixPermanentIndex, records[0].id)
			if err != nil {
				return err
			}
			firstChainLength = binary.LittleEndian.Uint32(v)
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "permanent: recovering starting chain length")
		}
		s.c0 = firstChainLength
	}
	return s, nil
}

// Close releases file handles and mappings.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.blocks.Close()
	err2 := s.lengths.close()
	if err1 != nil {
		return err1
	}
	return err2
}

// ContainsKey reports whether id names a permanent-tier block.
func (s *Store) ContainsKey(id []byte) (bool, error) {
	var found bool
	err := s.idx.View(func(txn *volatile.Txn) error {
		var err error
		found, err = txn.Has(volatile.PrefixPermanentIndex, id)
		return err
	})
	return found, err
}

// ContainsKeyTxn is ContainsKey scoped to an already-open transaction, so
// callers folding a permanent-tier check into a volatile mutation (prune,
// flush) see a consistent snapshot.
func (s *Store) ContainsKeyTxn(txn *volatile.Txn, id []byte) (bool, error) {
	return txn.Has(volatile.PrefixPermanentIndex, id)
}

func (s *Store) chainLengthOf(id []byte) (uint32, bool, error) {
	var (
		n     uint32
		found bool
	)
	err := s.idx.View(func(txn *volatile.Txn) error {
		v, err := txn.Get(volatile.PrefixPermanentIndex, id)
		if err == volatile.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		n = binary.LittleEndian.Uint32(v)
		found = true
		return nil
	})
	return n, found, err
}

func (s *Store) recordAt(chainLength uint32) (record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasData || chainLength < s.c0 {
		return record{}, false
	}
	i := int(chainLength - s.c0)
	if i >= len(s.records) {
		return record{}, false
	}
	return s.records[i], true
}

// GetBlock returns the sealed block bytes for id, if present.
func (s *Store) GetBlock(id []byte) (blockid.Value, bool, error) {
	n, found, err := s.chainLengthOf(id)
	if err != nil || !found {
		return blockid.Value{}, false, err
	}
	return s.GetBlockByChainLength(n)
}

// GetBlockByChainLength returns the sealed block bytes at height n.
func (s *Store) GetBlockByChainLength(n uint32) (blockid.Value, bool, error) {
	rec, ok := s.recordAt(n)
	if !ok {
		return blockid.Value{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.blocks.ReadAt(int64(rec.offset), int64(rec.length))
	if err != nil {
		return blockid.Value{}, false, errors.Wrap(err, "permanent: reading block")
	}
	return blockid.New(b), true, nil
}

// GetBlockInfo reconstructs BlockInfo for id with zero reference counts
// (permanent blocks are immutable and never pruned, so the counts are
// meaningless — see spec.md invariant 7).
func (s *Store) GetBlockInfo(id []byte) (*blockinfo.Info, bool, error) {
	n, found, err := s.chainLengthOf(id)
	if err != nil || !found {
		return nil, false, err
	}
	return s.GetBlockInfoByChainLength(n)
}

// GetBlockInfoByChainLength reconstructs BlockInfo for the block at
// height n. The parent is derived from the record one position earlier
// (or the root sentinel at C0), since the permanent tier is always a
// single contiguous chain (invariant 5).
func (s *Store) GetBlockInfoByChainLength(n uint32) (*blockinfo.Info, bool, error) {
	rec, ok := s.recordAt(n)
	if !ok {
		return nil, false, nil
	}
	var parentID blockid.ID
	if n == s.firstChainLength() {
		parentID = s.rootID
	} else {
		parentRec, ok := s.recordAt(n - 1)
		if !ok {
			return nil, false, errors.New("permanent: missing predecessor record")
		}
		parentID = blockid.NewID(parentRec.id)
	}
	return blockinfo.New(blockid.NewID(rec.id), parentID, n), true, nil
}

func (s *Store) firstChainLength() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c0
}

// MaxChainLength reports the highest sealed height, if any.
func (s *Store) MaxChainLength() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasData {
		return 0, false
	}
	return s.c0 + uint32(len(s.records)) - 1, true
}

// AppendBlocks seals ids/blocks starting at startChainLength, fsyncing
// blocks.dat and lengths.idx before returning. It does not touch the
// shared id → chain-length secondary index or the volatile tier — the
// caller (blockstore.FlushToPermanentStore) folds those into the same
// badger transaction that deletes the migrated volatile entries, so the
// whole migration is durable in two ordered fsync points rather than one
// distributed transaction (spec.md §4.7's crash-safety note).
//
// Re-appending a range that is already fully present is a no-op
// (idempotent append, per spec.md §9), which is what makes crash recovery
// safe: replaying an append whose volatile-side commit never landed
// simply does nothing the second time.
func (s *Store) AppendBlocks(startChainLength uint32, ids [][]byte, blocks [][]byte) error {
	if len(ids) != len(blocks) {
		return errors.New("permanent: ids/blocks length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasData {
		expected := s.c0 + uint32(len(s.records))
		if startChainLength < expected {
			// Overlapping or fully-contained append: verify it matches
			// what is already sealed and treat it as a no-op.
			return s.verifyOverlapLocked(startChainLength, ids)
		}
		if startChainLength != expected {
			return errors.Errorf("permanent: non-monotonic append: got start %d, want %d", startChainLength, expected)
		}
	}

	newRecords := make([]record, 0, len(ids))
	for i, block := range blocks {
		offset, err := s.blocks.Append(block)
		if err != nil {
			return err
		}
		newRecords = append(newRecords, record{
			offset: uint64(offset),
			length: uint64(len(block)),
			id:     append([]byte(nil), ids[i]...),
		})
	}
	if err := s.blocks.Sync(); err != nil {
		return err
	}
	if err := s.lengths.append(newRecords); err != nil {
		return err
	}

	if !s.hasData {
		s.c0 = startChainLength
		s.hasData = true
	}
	s.records = append(s.records, newRecords...)
	return nil
}

func (s *Store) verifyOverlapLocked(startChainLength uint32, ids [][]byte) error {
	for i, id := range ids {
		chainLength := startChainLength + uint32(i)
		if chainLength < s.c0 {
			continue
		}
		pos := int(chainLength - s.c0)
		if pos >= len(s.records) {
			return errors.New("permanent: partially-overlapping append is not idempotent")
		}
		if string(s.records[pos].id) != string(id) {
			return errors.New("permanent: overlapping append disagrees with sealed history")
		}
	}
	return nil
}

// Records returns a snapshot of (id, chain_length) for every sealed
// block, used by the recovery pass on store Open to reconcile the shared
// secondary index and remove any volatile duplicates left behind by a
// crash between AppendBlocks and the volatile deletion transaction.
func (s *Store) Records() []RecordView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecordView, len(s.records))
	for i, r := range s.records {
		out[i] = RecordView{ID: append([]byte(nil), r.id...), ChainLength: s.c0 + uint32(i)}
	}
	return out
}

// RecordView is a read-only view of one sealed block's identity/height.
type RecordView struct {
	ID          []byte
	ChainLength uint32
}
