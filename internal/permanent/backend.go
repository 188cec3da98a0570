package permanent

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// blockBytes is the minimal storage contract the permanent tier needs for
// its block payload file: append, fsync, and positional read. It has two
// implementations: fileBackend (blocks.dat, memory-mapped for reads, used
// by Open) and memBackend (a growable in-process buffer, used by
// OpenInMemory).
type blockBytes interface {
	Append(data []byte) (offset int64, err error)
	ReadAt(offset, length int64) ([]byte, error)
	Sync() error
	Close() error
}

// fileBackend appends to an on-disk file and serves reads from a
// read-only memory mapping of that file, re-established after every
// append so new bytes are visible without a syscall per read — the same
// style erigon's freezer/snapshot files use to serve sealed history.
type fileBackend struct {
	f    *os.File
	size int64
	m    mmap.MMap // nil until the file is non-empty
}

func openFileBackend(path string) (*fileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "permanent: opening blocks.dat")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "permanent: stat blocks.dat")
	}
	fb := &fileBackend{f: f, size: fi.Size()}
	if fb.size > 0 {
		if err := fb.remap(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return fb, nil
}

func (fb *fileBackend) remap() error {
	if fb.m != nil {
		if err := fb.m.Unmap(); err != nil {
			return errors.Wrap(err, "permanent: unmapping blocks.dat")
		}
		fb.m = nil
	}
	if fb.size == 0 {
		return nil
	}
	m, err := mmap.MapRegion(fb.f, int(fb.size), mmap.RDONLY, 0, 0)
	if err != nil {
		return errors.Wrap(err, "permanent: mapping blocks.dat")
	}
	fb.m = m
	return nil
}

func (fb *fileBackend) Append(data []byte) (int64, error) {
	offset := fb.size
	if _, err := fb.f.WriteAt(data, offset); err != nil {
		return 0, errors.Wrap(err, "permanent: appending to blocks.dat")
	}
	fb.size += int64(len(data))
	return offset, nil
}

func (fb *fileBackend) Sync() error {
	if err := fb.f.Sync(); err != nil {
		return errors.Wrap(err, "permanent: fsyncing blocks.dat")
	}
	return fb.remap()
}

func (fb *fileBackend) ReadAt(offset, length int64) ([]byte, error) {
	if fb.m == nil {
		return nil, errors.New("permanent: read from empty blocks.dat")
	}
	if offset < 0 || length < 0 || offset+length > int64(len(fb.m)) {
		return nil, errors.New("permanent: read out of range")
	}
	return fb.m[offset : offset+length], nil
}

func (fb *fileBackend) Close() error {
	if fb.m != nil {
		if err := fb.m.Unmap(); err != nil {
			fb.f.Close()
			return errors.Wrap(err, "permanent: unmapping blocks.dat")
		}
	}
	return errors.Wrap(fb.f.Close(), "permanent: closing blocks.dat")
}

// memBackend is the in-memory substitute used by OpenInMemory.
type memBackend struct {
	buf []byte
}

func (mb *memBackend) Append(data []byte) (int64, error) {
	offset := int64(len(mb.buf))
	mb.buf = append(mb.buf, data...)
	return offset, nil
}

func (mb *memBackend) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(mb.buf)) {
		return nil, errors.New("permanent: read out of range")
	}
	return mb.buf[offset : offset+length], nil
}

func (mb *memBackend) Sync() error { return nil }
func (mb *memBackend) Close() error { return nil }
