package permanent

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// record describes one sealed block: where its bytes live in blocks.dat
// and what its id is. The id is kept alongside the offset/length so that
// BlockInfo can be reconstructed purely from position (parent of the
// block at chain_length n is the block at chain_length n-1, per the
// permanent tier's single-chain invariant) without re-reading block
// bytes or consulting the volatile tier.
type record struct {
	offset uint64
	length uint64
	id     []byte
}

func recordSize(idLength int) int { return 8 + 8 + idLength }

func encodeRecord(r record) []byte {
	buf := make([]byte, recordSize(len(r.id)))
	binary.LittleEndian.PutUint64(buf[0:], r.offset)
	binary.LittleEndian.PutUint64(buf[8:], r.length)
	copy(buf[16:], r.id)
	return buf
}

func decodeRecord(buf []byte) record {
	return record{
		offset: binary.LittleEndian.Uint64(buf[0:]),
		length: binary.LittleEndian.Uint64(buf[8:]),
		id:     append([]byte(nil), buf[16:]...),
	}
}

// lengthsIndex persists the records slice. The in-memory slice is always
// authoritative for reads; the file (when present) exists purely for
// durability across process restarts.
type lengthsIndex struct {
	f        *os.File // nil for an in-memory store
	idLength int
}

func openLengthsIndex(path string, idLength int) (*lengthsIndex, []record, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "permanent: opening lengths.idx")
	}
	recSize := recordSize(idLength)
	var records []record
	buf := make([]byte, recSize)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrap(err, "permanent: reading lengths.idx")
		}
		records = append(records, decodeRecord(buf))
	}
	return &lengthsIndex{f: f, idLength: idLength}, records, nil
}

func (li *lengthsIndex) append(recs []record) error {
	if li.f == nil {
		return nil
	}
	for _, r := range recs {
		if _, err := li.f.Write(encodeRecord(r)); err != nil {
			return errors.Wrap(err, "permanent: appending to lengths.idx")
		}
	}
	return errors.Wrap(li.f.Sync(), "permanent: fsyncing lengths.idx")
}

func (li *lengthsIndex) close() error {
	if li.f == nil {
		return nil
	}
	return errors.Wrap(li.f.Close(), "permanent: closing lengths.idx")
}
