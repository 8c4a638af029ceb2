package blockio_test

import (
	"testing"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/blockio"
	"github.com/andaril-io/vfat32/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDevice_ReadSector(t *testing.T) {
	backing := make([]byte, 1024)
	copy(backing[512:], []byte("second sector"))
	device := fixtures.NewFileDevice(t, 512, 2, backing)

	buf := make([]byte, 512)
	n, err := device.ReadSector(1, buf)
	require.NoError(t, err)
	assert.EqualValues(t, 512, n)
	assert.Equal(t, byte('s'), buf[0])
}

func TestFileDevice_ReadSectorPastEndIsIO(t *testing.T) {
	device := fixtures.NewFileDevice(t, 512, 1, nil)

	buf := make([]byte, 512)
	_, err := device.ReadSector(5, buf)
	assert.ErrorIs(t, err, vfat32.ErrIO)
}

func TestFileDevice_WriteSectorIsNotSupported(t *testing.T) {
	device := fixtures.NewFileDevice(t, 512, 1, nil)

	_, err := device.WriteSector(0, make([]byte, 512))
	assert.ErrorIs(t, err, vfat32.ErrNotSupported)
}

func TestFileDevice_SectorSize(t *testing.T) {
	device := blockio.NewFileDevice(nil, 4096)
	assert.EqualValues(t, 4096, device.SectorSize())
}
