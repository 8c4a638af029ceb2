package fat32

import (
	"encoding/binary"
	"fmt"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/blockio"
)

// Fields are decoded at fixed byte offsets with explicit little-endian reads
// rather than via binary.Read against a Go struct, so the packed, unaligned
// on-disk layout is spelled out directly by these offsets.
const (
	ebpbSize               = 512
	ebpbSignatureOffset    = 510
	offBytesPerSector      = 11
	offSectorsPerCluster   = 13
	offReservedSectorCount = 14
	offNumFATs             = 16
	offTotalSectors16      = 19
	offSectorsPerFAT16     = 22
	offTotalSectors32      = 32
	offSectorsPerFAT32     = 36
	offRootCluster         = 44
)

// EBPB holds the geometry fields of a mounted FAT32 partition's extended
// BIOS parameter block that the rest of this module needs.
type EBPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	SectorsPerFAT     uint32
	TotalSectors      uint32
	RootCluster       uint32

	// FirstFATSector is the sector, relative to the start of the partition,
	// where the first FAT begins.
	FirstFATSector uint32
	// FirstDataSector is the sector, relative to the start of the partition,
	// where cluster 2 begins.
	FirstDataSector uint32
	// TotalClusters is the number of usable data clusters on the volume.
	TotalClusters uint32
}

// ReadEBPB reads and validates the boot sector of the partition starting at
// relativeSector (the MBR partition entry's RelativeSector).
func ReadEBPB(device blockio.BlockDevice, relativeSector uint32) (*EBPB, error) {
	// The boot sector signature and every EBPB field this module reads live
	// within the first 512 bytes regardless of the device's physical sector
	// size, but ReadSector always fills a buffer sized for exactly one
	// physical sector.
	physicalSize := device.SectorSize()
	bufSize := physicalSize
	if bufSize < ebpbSize {
		bufSize = ebpbSize
	}

	buf := make([]byte, bufSize)
	n, err := device.ReadSector(uint64(relativeSector), buf)
	if err != nil {
		return nil, vfat32.ErrIO.WrapError(err)
	}
	if n != int(bufSize) {
		return nil, vfat32.ErrIO.WithMessage("short read of EBPB sector")
	}

	if buf[ebpbSignatureOffset] != 0x55 || buf[ebpbSignatureOffset+1] != 0xAA {
		return nil, vfat32.ErrBadSignature.WithMessage("EBPB tail signature is not 0x55AA")
	}

	bytesPerSector := binary.LittleEndian.Uint16(buf[offBytesPerSector:])
	switch bytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, vfat32.ErrInvalidData.WithMessage(
			fmt.Sprintf("BytesPerSector must be 512/1024/2048/4096, got %d", bytesPerSector))
	}

	sectorsPerCluster := buf[offSectorsPerCluster]
	switch sectorsPerCluster {
	case 1, 2, 4, 8, 16, 32, 64, 128:
	default:
		return nil, vfat32.ErrInvalidData.WithMessage(
			fmt.Sprintf("SectorsPerCluster must be a power of 2 in [1,128], got %d", sectorsPerCluster))
	}

	reservedSectors := binary.LittleEndian.Uint16(buf[offReservedSectorCount:])
	numFATs := buf[offNumFATs]
	sectorsPerFAT32 := binary.LittleEndian.Uint32(buf[offSectorsPerFAT32:])
	rootCluster := binary.LittleEndian.Uint32(buf[offRootCluster:])

	totalSectors32 := binary.LittleEndian.Uint32(buf[offTotalSectors32:])
	totalSectors16 := binary.LittleEndian.Uint16(buf[offTotalSectors16:])
	var totalSectors uint32
	if totalSectors16 != 0 {
		totalSectors = uint32(totalSectors16)
	} else {
		totalSectors = totalSectors32
	}

	firstFATSector := uint32(reservedSectors)
	firstDataSector := firstFATSector + uint32(numFATs)*sectorsPerFAT32
	dataSectors := totalSectors - firstDataSector
	totalClusters := dataSectors / uint32(sectorsPerCluster)

	return &EBPB{
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		NumFATs:           numFATs,
		SectorsPerFAT:     sectorsPerFAT32,
		TotalSectors:      totalSectors,
		RootCluster:       rootCluster,
		FirstFATSector:    firstFATSector,
		FirstDataSector:   firstDataSector,
		TotalClusters:     totalClusters,
	}, nil
}

// BytesPerCluster returns the size of one cluster in bytes.
func (e *EBPB) BytesPerCluster() uint32 {
	return uint32(e.BytesPerSector) * uint32(e.SectorsPerCluster)
}
