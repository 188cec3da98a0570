package volatile

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Txn is a thin wrapper over a single badger transaction, scoping every
// operation to one of the logical-tree prefixes.
type Txn struct {
	t *badger.Txn
}

// Set writes value under (prefix, key).
func (tx *Txn) Set(prefix byte, key, value []byte) error {
	return errors.Wrap(tx.t.Set(prefixedKey(prefix, key), value), "volatile: set")
}

// Get returns a copy of the value stored under (prefix, key), or
// ErrKeyNotFound if absent.
func (tx *Txn) Get(prefix byte, key []byte) ([]byte, error) {
	item, err := tx.t.Get(prefixedKey(prefix, key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "volatile: get")
	}
	return item.ValueCopy(nil)
}

// Has reports whether (prefix, key) exists.
func (tx *Txn) Has(prefix byte, key []byte) (bool, error) {
	_, err := tx.t.Get(prefixedKey(prefix, key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "volatile: has")
	}
	return true, nil
}

// Delete removes (prefix, key). Deleting an absent key is not an error.
func (tx *Txn) Delete(prefix byte, key []byte) error {
	return errors.Wrap(tx.t.Delete(prefixedKey(prefix, key)), "volatile: delete")
}

// ScanPrefix calls fn with the unprefixed key and a copy of the value for
// every entry whose key starts with (prefix, sub...), in lexicographic
// (and therefore, for big-endian-encoded numeric subkeys, numeric) order.
// Stops early if fn returns an error.
func (tx *Txn) ScanPrefix(prefix byte, sub []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := tx.t.NewIterator(opts)
	defer it.Close()

	scanPrefix := prefixedKey(prefix, sub)
	for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)[1:] // drop the leading tree-prefix byte
		val, err := item.ValueCopy(nil)
		if err != nil {
			return errors.Wrap(err, "volatile: scan prefix")
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

// IterateAll calls fn with the unprefixed key of every entry under prefix.
func (tx *Txn) IterateAll(prefix byte, fn func(key []byte) error) error {
	return tx.ScanPrefix(prefix, nil, func(key, _ []byte) error {
		return fn(key)
	})
}
