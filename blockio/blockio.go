// Package blockio defines the boundary between this module and whatever
// backs the disk image: a real block device, a plain file, or an in-memory
// buffer in a test.
package blockio

import (
	"io"

	"github.com/andaril-io/vfat32"
)

// BlockDevice is the external contract the rest of this module is built on:
// something that can report its native sector size and read exactly one
// sector at a time. Everything above this layer (the MBR decoder, the
// cached device, the FAT reader) is written purely in terms of this
// interface and never assumes anything about what's underneath it.
type BlockDevice interface {
	// SectorSize returns the device's physical sector size in bytes. It is
	// constant for the lifetime of the device.
	SectorSize() uint32

	// ReadSector reads at most one physical sector, number n, into buf and
	// returns the number of bytes copied. A short read (fewer bytes than
	// SectorSize) that isn't paired with an error is only valid for the very
	// last sector of a device that isn't a multiple of its own sector size;
	// callers in this module always supply a buffer sized for exactly one
	// sector, so a short read here is reported as vfat32.ErrIO upstream.
	ReadSector(n uint64, buf []byte) (int, error)

	// WriteSector rounds out the BlockDevice contract; nothing in this
	// module calls it, since the reader never mutates the backing device.
	WriteSector(n uint64, buf []byte) (int, error)
}

// FileDevice adapts any io.ReaderAt (an *os.File opened on a disk image, an
// in-memory byte buffer, a fixture loaded over the network) into a
// BlockDevice with a fixed physical sector size.
type FileDevice struct {
	backing    io.ReaderAt
	sectorSize uint32
}

// NewFileDevice wraps backing as a BlockDevice with the given physical
// sector size. sectorSize must be one of the values FAT32 permits
// (512/1024/2048/4096); this constructor does not itself validate that,
// since it has no FAT32-specific knowledge — the EBPB decoder is the one
// that enforces it against the value it reads on-disk.
func NewFileDevice(backing io.ReaderAt, sectorSize uint32) *FileDevice {
	return &FileDevice{backing: backing, sectorSize: sectorSize}
}

func (d *FileDevice) SectorSize() uint32 {
	return d.sectorSize
}

func (d *FileDevice) ReadSector(n uint64, buf []byte) (int, error) {
	offset := int64(n) * int64(d.sectorSize)
	read, err := d.backing.ReadAt(buf[:d.sectorSize], offset)
	if err != nil && err != io.EOF {
		return read, vfat32.ErrIO.WrapError(err)
	}
	if read < int(d.sectorSize) {
		return read, vfat32.ErrIO.WithMessage("short read from backing device")
	}
	return read, nil
}

func (d *FileDevice) WriteSector(n uint64, buf []byte) (int, error) {
	return 0, vfat32.ErrNotSupported.WithMessage("FileDevice is read-only")
}
