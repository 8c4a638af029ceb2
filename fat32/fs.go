// Package fat32 implements a read-only FAT32 reader: MBR and EBPB decoding,
// FAT entry classification, cluster-chain traversal, directory decoding with
// long-filename reconstruction, and path resolution.
package fat32

import (
	"strings"
	"sync"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/blockio"
	"github.com/andaril-io/vfat32/cache"
)

// FileSystem is a mounted FAT32 volume. Every storage-touching operation
// acquires exclusive access for its duration via a plain sync.Mutex. File
// and Dir handles hold a pointer back to this FileSystem and re-acquire the
// lock on every operation rather than holding it across calls.
type FileSystem struct {
	device   blockio.BlockDevice
	cached   *cache.CachedBlockDevice
	fat      *FATReader
	clusters *ClusterChainReader
	ebpb     *EBPB
	mu       sync.Mutex
}

// Mount parses device's MBR, selects the first FAT32 partition, decodes its
// EBPB, and builds the cached-device and FAT layers.
func Mount(device blockio.BlockDevice) (*FileSystem, error) {
	mbr, err := ReadMBR(device)
	if err != nil {
		return nil, err
	}

	partition, err := mbr.FirstFAT32Partition()
	if err != nil {
		return nil, err
	}

	ebpb, err := ReadEBPB(device, partition.RelativeSector)
	if err != nil {
		return nil, err
	}

	partitionDesc := cache.Partition{
		StartSector:       uint64(partition.RelativeSector),
		LogicalSectorSize: uint32(ebpb.BytesPerSector),
	}
	totalVirtualSectors := uint64(partition.RelativeSector) + uint64(ebpb.TotalSectors)

	cachedDevice, err := cache.New(device, partitionDesc, totalVirtualSectors)
	if err != nil {
		return nil, err
	}

	fat := NewFATReader(cachedDevice, uint64(partition.RelativeSector), ebpb)
	clusters := NewClusterChainReader(cachedDevice, fat, uint64(partition.RelativeSector), ebpb)

	return &FileSystem{
		device:   device,
		cached:   cachedDevice,
		fat:      fat,
		clusters: clusters,
		ebpb:     ebpb,
	}, nil
}

// TotalClusters returns the number of usable data clusters on the volume,
// numbered clusterFirstUsable..TotalClusters()+clusterFirstUsable-1.
func (fs *FileSystem) TotalClusters() uint32 {
	return fs.ebpb.TotalClusters
}

// ClusterStatus returns the FAT status of a single cluster, for callers that
// need to scan the FAT directly rather than follow a chain from a directory
// entry.
func (fs *FileSystem) ClusterStatus(cluster Cluster) (FATStatus, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.fat.Entry(cluster)
	if err != nil {
		return 0, err
	}
	return entry.Status, nil
}

// ChainClusters walks the FAT chain starting at first and returns every
// cluster number in it, in chain order. Unlike reading a file or directory's
// contents, this never touches the data region.
func (fs *FileSystem) ChainClusters(first Cluster) ([]Cluster, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.clusters.ChainClusters(first)
}

// rootMetadata synthesizes the root directory's metadata: the DIRECTORY
// attribute with zeroed timestamps. Computed fresh on every call rather than
// shared as a package-level value, since nothing ever mutates it anyway.
func rootMetadata() Metadata {
	return Metadata{Attributes: AttrDirectory}
}

// Root returns the synthetic root directory: empty name, first cluster
// equal to the EBPB's root cluster, DIRECTORY attribute set.
func (fs *FileSystem) Root() *Dir {
	return &Dir{
		fs:           fs,
		name:         "",
		firstCluster: Cluster(fs.ebpb.RootCluster),
		metadata:     rootMetadata(),
	}
}

// Dir is a handle to a directory. It holds only its name, metadata, first
// cluster, and a pointer back to the shared FileSystem.
type Dir struct {
	fs           *FileSystem
	name         string
	firstCluster Cluster
	metadata     Metadata
}

func (d *Dir) Name() string          { return d.name }
func (d *Dir) Metadata() Metadata    { return d.metadata }
func (d *Dir) IsDir() bool           { return true }
func (d *Dir) FirstCluster() Cluster { return d.firstCluster }

// Entries reads the directory's entire cluster chain and decodes every
// record in it, assembling long filenames as it goes. The root directory is
// exempt from the "." with cluster 0 substitution rule below because it's
// never itself entered via a "." or ".." record — its first cluster always
// comes straight from the EBPB.
func (d *Dir) Entries() ([]Entry, error) {
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	data, err := d.fs.clusters.ReadChain(d.firstCluster)
	if err != nil {
		return nil, err
	}

	it := NewDirIterator(data)
	var out []Entry
	for {
		entry, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if entry.FirstCluster == 0 && (entry.Name == "." || entry.Name == "..") {
			// "." and ".." records that refer to the root directory carry
			// cluster 0; substitute the real root cluster.
			entry.FirstCluster = Cluster(d.fs.ebpb.RootCluster)
		}
		out = append(out, entry)
	}
	return out, nil
}

// find looks up name in dir case-insensitively (ASCII folding).
func (d *Dir) find(name string) (Entry, error) {
	entries, err := d.Entries()
	if err != nil {
		return Entry{}, err
	}

	folded := caseFold(name)
	for _, e := range entries {
		if caseFold(e.Name) == folded {
			return e, nil
		}
	}
	return Entry{}, vfat32.ErrNotFound.WithMessage("no entry named " + name)
}

func (d *Dir) childDir(e Entry) *Dir {
	return &Dir{fs: d.fs, name: e.Name, firstCluster: e.FirstCluster, metadata: e.Metadata}
}

func (d *Dir) childFile(e Entry) *File {
	return &File{fs: d.fs, name: e.Name, firstCluster: e.FirstCluster, size: int64(e.Size), metadata: e.Metadata}
}

// ChildDir builds a handle for entry, which must be a directory entry
// previously returned by d.Entries(). It performs no I/O of its own.
func (d *Dir) ChildDir(entry Entry) *Dir { return d.childDir(entry) }

// ChildFile builds a handle for entry, which must be a file entry
// previously returned by d.Entries(). It performs no I/O of its own.
func (d *Dir) ChildFile(entry Entry) *File { return d.childFile(entry) }

// Open resolves path from the volume root. path must begin with "/"; each
// component is matched case-insensitively against the current directory's
// entries. The result is either *Dir or *File. Write-side operations have no
// equivalent here: this reader never exposes a way to create, rename, or
// remove anything.
func (fs *FileSystem) Open(path string) (interface{}, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, vfat32.ErrInvalidInput.WithMessage("path must be absolute")
	}

	components := splitPathComponents(path)
	for _, c := range components {
		if c == "." || c == ".." {
			return nil, vfat32.ErrInvalidInput.WithMessage("relative path components are not allowed")
		}
	}

	current := fs.Root()
	for i, name := range components {
		entry, err := current.find(name)
		if err != nil {
			return nil, err
		}

		if entry.IsDir {
			current = current.childDir(entry)
			if i == len(components)-1 {
				return current, nil
			}
			continue
		}

		if i != len(components)-1 {
			return nil, vfat32.ErrInvalidInput.WithMessage(name + " is not a directory")
		}
		return current.childFile(entry), nil
	}

	return current, nil
}

func splitPathComponents(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
