package fat32

import (
	"encoding/binary"
	"fmt"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/blockio"
)

// Sector 0 layout: partition table plus tail signature.
const (
	mbrSectorSize         = 512
	mbrSignatureOffset    = 510
	mbrPartitionTable     = 446
	mbrPartitionEntrySize = 16
	mbrPartitionCount     = 4
)

var mbrSignature = [2]byte{0x55, 0xAA}

// PartitionEntry is one of the four fixed-size entries in the MBR partition
// table.
type PartitionEntry struct {
	// BootIndicator is 0x00 (not bootable) or 0x80 (bootable). Any other
	// value makes the whole MBR invalid.
	BootIndicator byte
	// PartitionType identifies the file system the partition claims to hold.
	// FAT32 uses 0x0B (CHS addressing) or 0x0C (LBA addressing).
	PartitionType byte
	// RelativeSector is the LBA of the partition's first sector.
	RelativeSector uint32
	// TotalSectors is the partition's size in sectors.
	TotalSectors uint32
}

// IsFAT32 reports whether this entry's type byte names a FAT32 partition.
func (p PartitionEntry) IsFAT32() bool {
	return p.PartitionType == 0x0B || p.PartitionType == 0x0C
}

// MBR is the decoded contents of sector 0.
type MBR struct {
	Partitions [mbrPartitionCount]PartitionEntry
}

// ReadMBR reads and validates sector 0 of device:
//   - a short read is ErrIO
//   - a missing 0x55 0xAA tail signature is ErrBadSignature
//   - any partition's boot indicator outside {0x00, 0x80} is
//     ErrUnknownBootIndicator
func ReadMBR(device blockio.BlockDevice) (*MBR, error) {
	// As with the EBPB, the partition table and tail signature live within
	// the first 512 bytes regardless of physical sector size.
	bufSize := device.SectorSize()
	if bufSize < mbrSectorSize {
		bufSize = mbrSectorSize
	}

	buf := make([]byte, bufSize)
	n, err := device.ReadSector(0, buf)
	if err != nil {
		return nil, vfat32.ErrIO.WrapError(err)
	}
	if n != int(bufSize) {
		return nil, vfat32.ErrIO.WithMessage("short read of MBR sector")
	}

	if buf[mbrSignatureOffset] != mbrSignature[0] || buf[mbrSignatureOffset+1] != mbrSignature[1] {
		return nil, vfat32.ErrBadSignature.WithMessage("MBR tail signature is not 0x55AA")
	}

	var mbr MBR
	for i := 0; i < mbrPartitionCount; i++ {
		offset := mbrPartitionTable + i*mbrPartitionEntrySize
		entryBytes := buf[offset : offset+mbrPartitionEntrySize]

		bootIndicator := entryBytes[0]
		if bootIndicator != 0x00 && bootIndicator != 0x80 {
			return nil, vfat32.ErrUnknownBootIndicator.WithMessage(
				fmt.Sprintf("partition entry %d has boot indicator 0x%02x", i, bootIndicator))
		}

		mbr.Partitions[i] = PartitionEntry{
			BootIndicator:  bootIndicator,
			PartitionType:  entryBytes[4],
			RelativeSector: binary.LittleEndian.Uint32(entryBytes[8:12]),
			TotalSectors:   binary.LittleEndian.Uint32(entryBytes[12:16]),
		}
	}

	return &mbr, nil
}

// FirstFAT32Partition returns the first partition entry whose type byte
// names a FAT32 volume. It fails with ErrNotFound if none of the four
// entries qualify.
func (mbr *MBR) FirstFAT32Partition() (PartitionEntry, error) {
	for _, entry := range mbr.Partitions {
		if entry.IsFAT32() {
			return entry, nil
		}
	}
	return PartitionEntry{}, vfat32.ErrNotFound.WithMessage("no FAT32 partition in MBR")
}
