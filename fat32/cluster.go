package fat32

import (
	"fmt"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/cache"
	"github.com/noxer/bytewriter"
)

// ClusterChainReader walks FAT32 cluster chains and serves their data
// region.
type ClusterChainReader struct {
	device          *cache.CachedBlockDevice
	fat             *FATReader
	partitionStart  uint64
	firstDataSector uint32
	sectorsPerClus  uint32
	bytesPerSector  uint32
	bytesPerCluster uint32
}

// NewClusterChainReader builds a reader over device for the data region
// described by ebpb.
func NewClusterChainReader(
	device *cache.CachedBlockDevice, fat *FATReader, partitionStart uint64, ebpb *EBPB,
) *ClusterChainReader {
	return &ClusterChainReader{
		device:          device,
		fat:             fat,
		partitionStart:  partitionStart,
		firstDataSector: ebpb.FirstDataSector,
		sectorsPerClus:  uint32(ebpb.SectorsPerCluster),
		bytesPerSector:  uint32(ebpb.BytesPerSector),
		bytesPerCluster: ebpb.BytesPerCluster(),
	}
}

// BytesPerCluster returns the size, in bytes, of one cluster.
func (r *ClusterChainReader) BytesPerCluster() uint32 {
	return r.bytesPerCluster
}

// clusterFirstVirtualSector returns the virtual sector number where
// cluster's data begins.
func (r *ClusterChainReader) clusterFirstVirtualSector(cluster Cluster) uint64 {
	return r.partitionStart + uint64(r.firstDataSector) +
		uint64(cluster-clusterFirstUsable)*uint64(r.sectorsPerClus)
}

// ReadCluster reads up to cluster_size-offset bytes, or len(buf), whichever
// is smaller, from cluster's data starting at offset bytes into the
// cluster. It returns the number of bytes written into buf.
//
// It fails fast with ErrInvalidData if cluster is marked Bad. Every sector
// here is read at its own, strictly increasing virtual sector number — the
// sector index and in-sector offset both advance each loop iteration, so
// later sectors never re-read an earlier position.
func (r *ClusterChainReader) ReadCluster(cluster Cluster, offset uint32, buf []byte) (int, error) {
	if offset >= r.bytesPerCluster {
		return 0, vfat32.ErrInvalidInput.WithMessage("offset is beyond the end of the cluster")
	}

	entry, err := r.fat.Entry(cluster)
	if err != nil {
		return 0, err
	}
	if entry.Status == StatusBad {
		return 0, vfat32.ErrInvalidData.WithMessage(
			fmt.Sprintf("cluster %d is marked bad", cluster))
	}

	toRead := r.bytesPerCluster - offset
	if uint32(len(buf)) < toRead {
		toRead = uint32(len(buf))
	}

	firstVirtualSector := r.clusterFirstVirtualSector(cluster)
	writer := bytewriter.New(buf[:toRead])

	remaining := toRead
	sectorIndex := offset / r.bytesPerSector
	offsetInSector := offset % r.bytesPerSector

	for remaining > 0 {
		sectorData, err := r.device.Get(firstVirtualSector + uint64(sectorIndex))
		if err != nil {
			return 0, err
		}

		chunk := sectorData[offsetInSector:]
		if uint32(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		n, err := writer.Write(chunk)
		if err != nil {
			return 0, vfat32.ErrIO.WrapError(err)
		}

		remaining -= uint32(n)
		sectorIndex++
		offsetInSector = 0
	}

	return int(toRead), nil
}

// ReadChain reads every cluster in the chain starting at start, following
// FAT entries until end-of-chain, into a freshly allocated buffer sized
// clusterCount*BytesPerCluster.
func (r *ClusterChainReader) ReadChain(start Cluster) ([]byte, error) {
	entry, err := r.fat.Entry(start)
	if err != nil {
		return nil, err
	}
	if entry.Status == StatusBad {
		return nil, vfat32.ErrInvalidData.WithMessage(
			fmt.Sprintf("chain start cluster %d is marked bad", start))
	}

	var out []byte
	current := start

	for {
		out = append(out, make([]byte, r.bytesPerCluster)...)
		index := len(out)/int(r.bytesPerCluster) - 1
		dest := out[index*int(r.bytesPerCluster):]

		_, err := r.ReadCluster(current, 0, dest)
		if err != nil {
			return nil, err
		}

		entry, err := r.fat.Entry(current)
		if err != nil {
			return nil, err
		}

		switch entry.Status {
		case StatusData:
			current = entry.Next
		case StatusEoc:
			return out, nil
		default:
			return nil, vfat32.ErrInvalidData.WithMessage(
				fmt.Sprintf("unexpected FAT status for cluster %d mid-chain", current))
		}
	}
}

// ChainClusters walks the FAT chain starting at start and returns every
// cluster number visited, in chain order, without touching the data region.
// It fails with ErrInvalidData on a bad cluster or an unexpected mid-chain
// FAT status, same as ReadChain.
func (r *ClusterChainReader) ChainClusters(start Cluster) ([]Cluster, error) {
	entry, err := r.fat.Entry(start)
	if err != nil {
		return nil, err
	}
	if entry.Status == StatusBad {
		return nil, vfat32.ErrInvalidData.WithMessage(
			fmt.Sprintf("chain start cluster %d is marked bad", start))
	}

	var out []Cluster
	current := start

	for {
		out = append(out, current)

		entry, err := r.fat.Entry(current)
		if err != nil {
			return nil, err
		}

		switch entry.Status {
		case StatusData:
			current = entry.Next
		case StatusEoc:
			return out, nil
		default:
			return nil, vfat32.ErrInvalidData.WithMessage(
				fmt.Sprintf("unexpected FAT status for cluster %d mid-chain", current))
		}
	}
}

// walkChain returns the clusterIndex'th cluster in the chain starting at
// first, walking the FAT clusterIndex times. Indexing begins at 0 (index 0
// is first itself).
//
// A byte offset's cluster index is a position in the chain, never a cluster
// number on its own; the only valid way to resolve it is to walk the chain
// this many times from the start.
func walkChain(fat *FATReader, first Cluster, clusterIndex uint32) (Cluster, error) {
	current := first

	for i := uint32(0); i < clusterIndex; i++ {
		entry, err := fat.Entry(current)
		if err != nil {
			return 0, err
		}

		switch entry.Status {
		case StatusData:
			current = entry.Next
		case StatusEoc:
			return 0, vfat32.ErrInvalidData.WithMessage(
				fmt.Sprintf("cluster index %d is past the end of the chain from %d", clusterIndex, first))
		default:
			return 0, vfat32.ErrInvalidData.WithMessage(
				fmt.Sprintf("unexpected FAT status for cluster %d mid-chain", current))
		}
	}

	return current, nil
}
