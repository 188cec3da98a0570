package volatile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	eng, err := OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Update(func(txn *Txn) error {
		return txn.Set(PrefixBlocks, []byte("a"), []byte("block-a"))
	})
	require.NoError(t, err)

	err = eng.View(func(txn *Txn) error {
		v, err := txn.Get(PrefixBlocks, []byte("a"))
		require.NoError(t, err)
		require.Equal(t, "block-a", string(v))
		return nil
	})
	require.NoError(t, err)

	err = eng.Update(func(txn *Txn) error {
		return txn.Delete(PrefixBlocks, []byte("a"))
	})
	require.NoError(t, err)

	err = eng.View(func(txn *Txn) error {
		_, err := txn.Get(PrefixBlocks, []byte("a"))
		require.Equal(t, ErrKeyNotFound, err)
		return nil
	})
	require.NoError(t, err)
}

func TestPrefixesDoNotCollide(t *testing.T) {
	eng, err := OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Update(func(txn *Txn) error {
		if err := txn.Set(PrefixBlocks, []byte("x"), []byte("in-blocks")); err != nil {
			return err
		}
		return txn.Set(PrefixInfo, []byte("x"), []byte("in-info"))
	})
	require.NoError(t, err)

	err = eng.View(func(txn *Txn) error {
		v, err := txn.Get(PrefixBlocks, []byte("x"))
		require.NoError(t, err)
		require.Equal(t, "in-blocks", string(v))

		v, err = txn.Get(PrefixInfo, []byte("x"))
		require.NoError(t, err)
		require.Equal(t, "in-info", string(v))
		return nil
	})
	require.NoError(t, err)
}

func TestScanPrefixOrdersLexicographically(t *testing.T) {
	eng, err := OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Update(func(txn *Txn) error {
		for _, k := range [][]byte{{0, 0, 0, 2}, {0, 0, 0, 1}, {0, 0, 0, 3}} {
			if err := txn.Set(PrefixChainLengthIndex, k, nil); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var seen []byte
	err = eng.View(func(txn *Txn) error {
		return txn.ScanPrefix(PrefixChainLengthIndex, nil, func(key, _ []byte) error {
			seen = append(seen, key[3])
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, seen)
}
