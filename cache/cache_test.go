package cache_test

import (
	"testing"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/cache"
	"github.com/andaril-io/vfat32/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNonMultipleLogicalSectorSize(t *testing.T) {
	device := fixtures.NewFileDevice(t, 512, 4, nil)

	_, err := cache.New(device, cache.Partition{StartSector: 0, LogicalSectorSize: 700}, 4)
	assert.ErrorIs(t, err, vfat32.ErrInvalidData)
}

func TestCachedBlockDevice_ReadSectorOneToOne(t *testing.T) {
	backing := make([]byte, 512*4)
	copy(backing[512*2:], []byte("third sector"))
	device := fixtures.NewFileDevice(t, 512, 4, backing)

	c, err := cache.New(device, cache.Partition{StartSector: 0, LogicalSectorSize: 512}, 4)
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := c.ReadSector(2, buf)
	require.NoError(t, err)
	assert.EqualValues(t, 512, n)
	assert.Equal(t, byte('t'), buf[0])
	assert.True(t, c.IsLoaded(2))
	assert.False(t, c.IsLoaded(3))
}

func TestCachedBlockDevice_ReadSectorWithFactor(t *testing.T) {
	// Partition starts at physical sector 2, logical sector size is twice the
	// physical sector size: logical sector 2 maps to physical sectors 2-3.
	backing := make([]byte, 512*8)
	copy(backing[512*2:], []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")) // sector 2
	copy(backing[512*3:], []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")) // sector 3
	device := fixtures.NewFileDevice(t, 512, 8, backing)

	c, err := cache.New(device, cache.Partition{StartSector: 2, LogicalSectorSize: 1024}, 8)
	require.NoError(t, err)

	buf := make([]byte, 1024)
	n, err := c.ReadSector(2, buf)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, n)
	assert.Equal(t, byte('a'), buf[0])
	assert.Equal(t, byte('b'), buf[512])
}

func TestCachedBlockDevice_WriteSectorRequiresExactSize(t *testing.T) {
	device := fixtures.NewFileDevice(t, 512, 2, nil)
	c, err := cache.New(device, cache.Partition{StartSector: 0, LogicalSectorSize: 512}, 2)
	require.NoError(t, err)

	err = c.WriteSector(0, make([]byte, 100))
	assert.ErrorIs(t, err, vfat32.ErrInvalidInput)
}

func TestCachedBlockDevice_Partition(t *testing.T) {
	device := fixtures.NewFileDevice(t, 512, 1, nil)
	partition := cache.Partition{StartSector: 0, LogicalSectorSize: 512}
	c, err := cache.New(device, partition, 1)
	require.NoError(t, err)

	assert.Equal(t, partition, c.Partition())
}
