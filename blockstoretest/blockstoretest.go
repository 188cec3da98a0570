// Package blockstoretest carries over the original chain-storage crate's
// test_utils module: small synthetic-chain generators for downstream
// ledger/consensus tests that want to generate chains the same way (this
// module's own tests do not import it) (spec.md §4's data model,
// SUPPLEMENTED FEATURES §10.2).
package blockstoretest

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/catalyst-chain/chainstorage/blockid"
	"github.com/catalyst-chain/chainstorage/blockinfo"
	"github.com/catalyst-chain/chainstorage/blockstore"
)

var globalIDCounter uint64

// GenerateID returns a process-wide-unique 8-byte little-endian id,
// matching the original test harness's monotonic counter.
func GenerateID() blockid.ID {
	n := atomic.AddUint64(&globalIDCounter, 1)
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return blockid.NewID(b)
}

// Block is a synthetic test block: an id, a parent id, a height, and an
// opaque payload.
type Block struct {
	ID          blockid.ID
	ParentID    blockid.ID
	ChainLength uint32
	Data        []byte
}

// GenesisBlock builds a first block (parent == root, chain_length == 1).
func GenesisBlock(rootID blockid.ID, data []byte) Block {
	return Block{
		ID:          GenerateID(),
		ParentID:    rootID,
		ChainLength: 1,
		Data:        data,
	}
}

// MakeChild builds a block whose parent is b, one chain_length higher.
func (b Block) MakeChild(data []byte) Block {
	return Block{
		ID:          GenerateID(),
		ParentID:    b.ID,
		ChainLength: b.ChainLength + 1,
		Data:        data,
	}
}

// Info builds the BlockInfo record for b.
func (b Block) Info() *blockinfo.Info {
	return blockinfo.New(b.ID, b.ParentID, b.ChainLength)
}

// Put inserts b into store.
func (b Block) Put(store *blockstore.BlockStore) error {
	return store.PutBlock(blockid.New(b.Data), b.Info())
}

// GenerateChain seeds store with a genesis block and ten randomly-sized
// branches growing from randomly-chosen existing blocks, mirroring the
// original test harness's generate_chain. pickIndex is called with the
// current number of generated blocks and must return an index in
// [0, n); branchLen is called once per branch and must return a branch
// length >= 1. Both are caller-supplied so tests stay deterministic
// without this package depending on a random source itself.
func GenerateChain(store *blockstore.BlockStore, rootID blockid.ID, pickIndex func(n int) int, branchLen func() int) ([]Block, error) {
	var blocks []Block

	genesis := GenesisBlock(rootID, nil)
	if err := genesis.Put(store); err != nil {
		return nil, err
	}
	blocks = append(blocks, genesis)

	for branch := 0; branch < 10; branch++ {
		parent := blocks[pickIndex(len(blocks))]
		r := branchLen()
		if r < 1 {
			r = 1
		}
		for i := 0; i < r; i++ {
			child := parent.MakeChild(nil)
			if err := child.Put(store); err != nil {
				return nil, err
			}
			blocks = append(blocks, child)
			parent = child
		}
	}

	return blocks, nil
}
