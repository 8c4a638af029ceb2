package fat32

import (
	"encoding/binary"
	"fmt"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/cache"
)

// Cluster is an unsigned 28-bit cluster number. Only the low 28 bits of any
// on-disk 32-bit representation are semantic.
type Cluster uint32

// FirstUsableCluster is the lowest cluster number that can hold data; 0 and
// 1 are always reserved. A volume's data clusters run from here through
// FirstUsableCluster+TotalClusters()-1.
const FirstUsableCluster Cluster = clusterFirstUsable

const clusterMask = 0x0FFFFFFF

// Reserved cluster-number and FAT-status boundaries.
const (
	clusterFree         = 0
	clusterFirstUsable  = 2
	clusterReservedLow  = 0x0FFFFFF0
	clusterReservedHigh = 0x0FFFFFF6
	clusterBadMarker    = 0x0FFFFFF7
	clusterEocLow       = 0x0FFFFFF8
	clusterEocHigh      = 0x0FFFFFFF
)

// FATStatus classifies a single FAT entry.
type FATStatus int

const (
	StatusFree FATStatus = iota
	StatusReserved
	StatusData
	StatusBad
	StatusEoc
)

// FATEntry is a classified FAT entry. Next is only meaningful when Status is
// StatusData.
type FATEntry struct {
	Status FATStatus
	Next   Cluster
	Raw    uint32
}

func classify(raw uint32) FATEntry {
	value := raw & clusterMask
	switch {
	case value == clusterFree:
		return FATEntry{Status: StatusFree, Raw: raw}
	case value == 1:
		return FATEntry{Status: StatusReserved, Raw: raw}
	case value >= clusterReservedLow && value <= clusterReservedHigh:
		return FATEntry{Status: StatusReserved, Raw: raw}
	case value == clusterBadMarker:
		return FATEntry{Status: StatusBad, Raw: raw}
	case value >= clusterEocLow && value <= clusterEocHigh:
		return FATEntry{Status: StatusEoc, Raw: raw}
	default:
		return FATEntry{Status: StatusData, Next: Cluster(value), Raw: raw}
	}
}

// FATReader locates and classifies FAT entries for a mounted volume.
type FATReader struct {
	device         *cache.CachedBlockDevice
	partitionStart uint64
	firstFATSector uint32
	bytesPerSector uint32
	sectorsPerFAT  uint32
}

// NewFATReader builds a FATReader over device for the FAT region described
// by ebpb. partitionStart is the MBR-relative sector where the partition
// begins, since the cache's virtual sector numbers are partition-relative
// offsets added to that base.
func NewFATReader(device *cache.CachedBlockDevice, partitionStart uint64, ebpb *EBPB) *FATReader {
	return &FATReader{
		device:         device,
		partitionStart: partitionStart,
		firstFATSector: ebpb.FirstFATSector,
		bytesPerSector: uint32(ebpb.BytesPerSector),
		sectorsPerFAT:  ebpb.SectorsPerFAT,
	}
}

// Entry computes the byte offset of cluster's FAT entry, locates its
// containing sector within the cached FAT region, and returns the
// classified entry.
func (r *FATReader) Entry(cluster Cluster) (FATEntry, error) {
	byteOffset := uint64(cluster) * 4
	sectorOffset := uint32(byteOffset / uint64(r.bytesPerSector))
	if sectorOffset >= r.sectorsPerFAT {
		return FATEntry{}, vfat32.ErrNotFound.WithMessage(
			fmt.Sprintf("cluster %d is beyond the end of the FAT", cluster))
	}

	virtualSector := r.partitionStart + uint64(r.firstFATSector) + uint64(sectorOffset)
	sectorData, err := r.device.Get(virtualSector)
	if err != nil {
		return FATEntry{}, err
	}

	within := uint32(byteOffset % uint64(r.bytesPerSector))
	if within+4 > uint32(len(sectorData)) {
		return FATEntry{}, vfat32.ErrInvalidData.WithMessage("FAT entry straddles a sector boundary")
	}

	raw := binary.LittleEndian.Uint32(sectorData[within : within+4])
	return classify(raw), nil
}
