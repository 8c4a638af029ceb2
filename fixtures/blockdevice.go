package fixtures

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/andaril-io/vfat32/blockio"
	"github.com/stretchr/testify/require"
)

// RandomImage returns totalSectors*bytesPerSector random bytes. It is
// guaranteed to either return a full-sized slice or fail the test and abort.
func RandomImage(t *testing.T, bytesPerSector, totalSectors uint) []byte {
	data := make([]byte, bytesPerSector*totalSectors)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to fill %d sectors of %d bytes with random data", totalSectors, bytesPerSector)
	return data
}

// NewFileDevice wraps backingData (nil for fresh random data) in a
// blockio.FileDevice with the given sector size, for tests that only need a
// BlockDevice and don't care about an on-disk file.
func NewFileDevice(t *testing.T, bytesPerSector, totalSectors uint, backingData []byte) *blockio.FileDevice {
	if backingData == nil {
		backingData = RandomImage(t, bytesPerSector, totalSectors)
	}
	require.Len(t, backingData, int(bytesPerSector*totalSectors), "backing data is the wrong size")

	return blockio.NewFileDevice(bytes.NewReader(backingData), uint32(bytesPerSector))
}
