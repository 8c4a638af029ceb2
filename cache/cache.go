// Package cache implements the logical-sector caching layer: it sits between
// the FAT32 reader and a blockio.BlockDevice, translating virtual (logical)
// sector numbers into runs of physical sectors and caching whole logical
// sectors in memory.
package cache

import (
	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/blockio"
	"github.com/boljen/go-bitmap"
)

// Partition describes where a FAT32 volume begins on the underlying device
// and what its logical sector size is. It is built from the selected MBR
// partition entry (StartSector) and the partition's own EBPB
// (LogicalSectorSize, i.e. BytesPerSector).
type Partition struct {
	// StartSector is the physical sector number where the partition begins.
	StartSector uint64
	// LogicalSectorSize is the partition's bytes-per-sector value. It must be
	// a positive integer multiple of the device's physical sector size.
	LogicalSectorSize uint32
}

// CacheEntry is one cached logical sector.
type CacheEntry struct {
	Data  []byte
	Dirty bool
}

// CachedBlockDevice maps virtual sector numbers onto runs of physical
// sectors on device and caches the assembled logical sectors. It has no
// eviction policy: every sector it has ever served stays resident for the
// life of the cache, an acceptable trade-off for a read-only reader with a
// modest working set.
//
// totalVirtualSectors bounds the loaded/dirty bitmaps; it is the number of
// logical sector addresses ever reachable through this cache (pre-partition
// metadata sectors plus every logical sector inside the partition), computed
// by the caller from the EBPB at construction time.
type CachedBlockDevice struct {
	device     blockio.BlockDevice
	partition  Partition
	factor     uint32
	loaded     bitmap.Bitmap
	dirty      bitmap.Bitmap
	entries    map[uint64]*CacheEntry
	totalCount uint64
}

// New builds a CachedBlockDevice. It returns vfat32.ErrInvalidData if the
// partition's logical sector size isn't an integer multiple of the device's
// physical sector size.
func New(
	device blockio.BlockDevice, partition Partition, totalVirtualSectors uint64,
) (*CachedBlockDevice, error) {
	physicalSize := device.SectorSize()
	if partition.LogicalSectorSize < physicalSize ||
		partition.LogicalSectorSize%physicalSize != 0 {
		return nil, vfat32.ErrInvalidData.WithMessage(
			"logical sector size is not an integer multiple of the physical sector size")
	}

	return &CachedBlockDevice{
		device:     device,
		partition:  partition,
		factor:     partition.LogicalSectorSize / physicalSize,
		loaded:     bitmap.NewSlice(int(totalVirtualSectors)),
		dirty:      bitmap.NewSlice(int(totalVirtualSectors)),
		entries:    make(map[uint64]*CacheEntry),
		totalCount: totalVirtualSectors,
	}, nil
}

// mapVirtualSector returns the first physical sector backing virtual sector
// v, and the number of contiguous physical sectors that make it up.
func (c *CachedBlockDevice) mapVirtualSector(v uint64) (physicalStart uint64, count uint32) {
	if v < c.partition.StartSector || c.factor == 1 {
		return v, 1
	}
	physicalStart = c.partition.StartSector + (v-c.partition.StartSector)*uint64(c.factor)
	return physicalStart, c.factor
}

// entrySize returns the size, in bytes, of the logical sector at v: one
// physical sector for pre-partition access, the partition's logical sector
// size otherwise.
func (c *CachedBlockDevice) entrySize(v uint64) uint32 {
	if v < c.partition.StartSector || c.factor == 1 {
		return c.device.SectorSize()
	}
	return c.partition.LogicalSectorSize
}

// fetch loads virtual sector v from the backing device, populating the
// cache. Physical sectors are demanded strictly in ascending order.
func (c *CachedBlockDevice) fetch(v uint64) (*CacheEntry, error) {
	physicalStart, count := c.mapVirtualSector(v)
	physicalSize := c.device.SectorSize()
	data := make([]byte, int(count)*int(physicalSize))

	for i := uint32(0); i < count; i++ {
		sectorBuf := data[int(i)*int(physicalSize) : int(i+1)*int(physicalSize)]
		_, err := c.device.ReadSector(physicalStart+uint64(i), sectorBuf)
		if err != nil {
			return nil, vfat32.ErrIO.WrapError(err)
		}
	}

	entry := &CacheEntry{Data: data}
	c.entries[v] = entry
	if v < c.totalCount {
		c.loaded.Set(int(v), true)
		c.dirty.Set(int(v), false)
	}
	return entry, nil
}

// Get returns a shared view of virtual sector v, loading it on a cache miss.
// The returned slice must not be retained past the caller's current
// operation: a future re-borrow of the cache (through any method on this
// type) is free to keep serving the same backing array, and nothing
// guarantees that stays true once eviction is added.
func (c *CachedBlockDevice) Get(v uint64) ([]byte, error) {
	entry, ok := c.entries[v]
	if ok {
		return entry.Data, nil
	}
	entry, err := c.fetch(v)
	if err != nil {
		return nil, err
	}
	return entry.Data, nil
}

// GetMut returns a mutable view of virtual sector v and marks it dirty. It
// backs WriteSector, the only mutating path this cache exposes; nothing in
// this read-only reader calls WriteSector itself.
func (c *CachedBlockDevice) GetMut(v uint64) ([]byte, error) {
	entry, ok := c.entries[v]
	if !ok {
		var err error
		entry, err = c.fetch(v)
		if err != nil {
			return nil, err
		}
	}
	entry.Dirty = true
	if v < c.totalCount {
		c.dirty.Set(int(v), true)
	}
	return entry.Data, nil
}

// ReadSector copies min(len(logical sector), len(buf)) bytes from the cached
// logical sector v into buf.
func (c *CachedBlockDevice) ReadSector(v uint64, buf []byte) (int, error) {
	data, err := c.Get(v)
	if err != nil {
		return 0, err
	}
	n := len(data)
	if len(buf) < n {
		n = len(buf)
	}
	copy(buf[:n], data[:n])
	return n, nil
}

// WriteSector copies buf (which must be exactly the logical sector size)
// into the cached entry for v and marks it dirty. There is no write-back
// path to the underlying device; this exists to round out the cache's data
// model, not because this read-only reader calls it.
func (c *CachedBlockDevice) WriteSector(v uint64, buf []byte) error {
	size := c.entrySize(v)
	if uint32(len(buf)) != size {
		return vfat32.ErrInvalidInput.WithMessage("write buffer is not one logical sector")
	}
	data, err := c.GetMut(v)
	if err != nil {
		return err
	}
	copy(data, buf)
	return nil
}

// IsLoaded reports whether virtual sector v is currently resident in the
// cache, without triggering a fetch.
func (c *CachedBlockDevice) IsLoaded(v uint64) bool {
	if v >= c.totalCount {
		_, ok := c.entries[v]
		return ok
	}
	return c.loaded.Get(int(v))
}

// Partition returns the partition descriptor this cache was built from.
func (c *CachedBlockDevice) Partition() Partition {
	return c.partition
}
