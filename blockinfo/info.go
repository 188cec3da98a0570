// Package blockinfo holds the BlockInfo metadata record (id, parent id,
// chain length, reference counts) and its on-disk wire encoding.
package blockinfo

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/catalyst-chain/chainstorage/blockid"
)

// Info is the metadata record stored alongside every block: its id, its
// parent's id, its height (chain length), and the two reference counts
// that determine whether the block can be pruned.
//
// The ref-count fields are unexported: they are only ever mutated through
// AddParentRef/RemoveParentRef/AddTagRef/RemoveTagRef so every call site
// documents why a count changed.
type Info struct {
	id             blockid.ID
	parentID       blockid.ID
	chainLength    uint32
	parentRefCount uint32
	tagRefCount    uint32
}

// New builds an Info with zero reference counts, as used for a
// freshly-inserted block or for a reconstructed permanent-tier block
// (whose counts are always zero — see RefCount's doc comment).
func New(id, parentID blockid.ID, chainLength uint32) *Info {
	return &Info{id: id, parentID: parentID, chainLength: chainLength}
}

func (i *Info) ID() blockid.ID           { return i.id }
func (i *Info) ParentID() blockid.ID     { return i.parentID }
func (i *Info) ChainLength() uint32      { return i.chainLength }
func (i *Info) ParentRefCount() uint32   { return i.parentRefCount }
func (i *Info) TagRefCount() uint32      { return i.tagRefCount }

// RefCount is parentRefCount + tagRefCount. For permanent-tier blocks this
// is always reported as zero by the caller (see spec: a permanent block's
// ref_count is conceptually infinite, so the individual counts are
// meaningless and never populated for those blocks).
func (i *Info) RefCount() uint32 { return i.parentRefCount + i.tagRefCount }

// AddParentRef records that a newly-inserted block names this block as
// its parent.
func (i *Info) AddParentRef() { i.parentRefCount++ }

// RemoveParentRef records that a child block naming this block as parent
// has been pruned.
func (i *Info) RemoveParentRef() { i.parentRefCount-- }

// AddTagRef records that a tag now points at this block.
func (i *Info) AddTagRef() { i.tagRefCount++ }

// RemoveTagRef records that a tag no longer points at this block.
func (i *Info) RemoveTagRef() { i.tagRefCount-- }

// wire format (little-endian), per spec:
//
//	u32 id_len       // equals configured L
//	bytes[L] id
//	u32 parent_len   // equals L
//	bytes[L] parent_id
//	u32 chain_length
//	u32 parent_ref_count
//	u32 tag_ref_count
func (i *Info) Serialize() []byte {
	idBytes := i.id.Bytes()
	parentBytes := i.parentID.Bytes()

	size := 4 + len(idBytes) + 4 + len(parentBytes) + 4 + 4 + 4
	buf := make([]byte, size)
	o := 0

	binary.LittleEndian.PutUint32(buf[o:], uint32(len(idBytes)))
	o += 4
	o += copy(buf[o:], idBytes)

	binary.LittleEndian.PutUint32(buf[o:], uint32(len(parentBytes)))
	o += 4
	o += copy(buf[o:], parentBytes)

	binary.LittleEndian.PutUint32(buf[o:], i.chainLength)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], i.parentRefCount)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], i.tagRefCount)

	return buf
}

// Deserialize parses the wire format produced by Serialize.
func Deserialize(b []byte) (*Info, error) {
	if len(b) < 4 {
		return nil, errors.New("blockinfo: truncated record (missing id_len)")
	}
	o := 0
	idLen := binary.LittleEndian.Uint32(b[o:])
	o += 4
	if len(b) < o+int(idLen)+4 {
		return nil, errors.New("blockinfo: truncated record (id)")
	}
	id := append([]byte(nil), b[o:o+int(idLen)]...)
	o += int(idLen)

	parentLen := binary.LittleEndian.Uint32(b[o:])
	o += 4
	if len(b) < o+int(parentLen)+12 {
		return nil, errors.New("blockinfo: truncated record (parent_id/footer)")
	}
	parentID := append([]byte(nil), b[o:o+int(parentLen)]...)
	o += int(parentLen)

	chainLength := binary.LittleEndian.Uint32(b[o:])
	o += 4
	parentRefCount := binary.LittleEndian.Uint32(b[o:])
	o += 4
	tagRefCount := binary.LittleEndian.Uint32(b[o:])

	return &Info{
		id:             blockid.NewID(id),
		parentID:       blockid.NewID(parentID),
		chainLength:    chainLength,
		parentRefCount: parentRefCount,
		tagRefCount:    tagRefCount,
	}, nil
}
