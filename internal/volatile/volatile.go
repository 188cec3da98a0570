// Package volatile wraps BadgerDB as the mutable, branchable key/value
// tier described in spec.md §4.1. BadgerDB keeps one flat keyspace, so the
// five logical trees (blocks, info, chain-length index, branch tips, tags)
// plus the permanent tier's shared secondary index become single-byte key
// prefixes — the same scheme the teacher's DBPrefixes table uses to carve
// one badger instance into many logical tables, just with six hand-written
// entries instead of eighty reflected ones.
package volatile

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Prefix bytes for the logical trees sharing one badger keyspace.
const (
	PrefixBlocks           byte = 0x01
	PrefixInfo             byte = 0x02
	PrefixChainLengthIndex byte = 0x03
	PrefixBranchTips       byte = 0x04
	PrefixTags             byte = 0x05
	PrefixPermanentIndex   byte = 0x06
)

// ErrKeyNotFound is returned by Txn.Get when the key is absent.
var ErrKeyNotFound = errors.New("volatile: key not found")

// Engine is the transactional embedded key/value engine consumed by the
// rest of the store. Every public operation that touches more than one
// logical tree runs inside a single call to Update, giving the
// cross-tree atomicity spec.md §4.1 requires.
type Engine struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger database rooted at path.
func Open(path string) (*Engine, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "volatile: opening badger database")
	}
	return &Engine{db: db}, nil
}

// OpenInMemory opens a temporary, non-persistent badger database.
func OpenInMemory() (*Engine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "volatile: opening in-memory badger database")
	}
	return &Engine{db: db}, nil
}

// Close flushes and closes the underlying engine.
func (e *Engine) Close() error {
	return errors.Wrap(e.db.Close(), "volatile: closing badger database")
}

// Update runs fn inside a single read-write transaction, committing on a
// nil return and rolling back (discarding) otherwise.
func (e *Engine) Update(fn func(txn *Txn) error) error {
	return e.db.Update(func(t *badger.Txn) error {
		return fn(&Txn{t: t})
	})
}

// View runs fn inside a single read-only transaction.
func (e *Engine) View(fn func(txn *Txn) error) error {
	return e.db.View(func(t *badger.Txn) error {
		return fn(&Txn{t: t})
	})
}

func prefixedKey(prefix byte, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = prefix
	copy(out[1:], key)
	return out
}
