package fat32_test

import (
	"encoding/binary"
	"testing"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/fat32"
	"github.com/andaril-io/vfat32/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEBPBSector(v fixtures.BootSectorVector) []byte {
	buf := make([]byte, v.BytesPerSector)
	binary.LittleEndian.PutUint16(buf[11:], uint16(v.BytesPerSector))
	buf[13] = byte(v.SectorsPerCluster)
	binary.LittleEndian.PutUint16(buf[14:], uint16(v.ReservedSectors))
	buf[16] = byte(v.NumFATs)
	binary.LittleEndian.PutUint32(buf[36:], uint32(v.SectorsPerFAT32))
	binary.LittleEndian.PutUint32(buf[44:], uint32(v.RootCluster))
	binary.LittleEndian.PutUint32(buf[32:], uint32(v.TotalSectors))
	buf[510] = 0x55
	buf[511] = 0xAA
	return buf
}

func TestReadEBPB_AcceptsKnownGoodVectors(t *testing.T) {
	for slug, vector := range fixtures.BootSectorVectors() {
		vector := vector
		t.Run(slug, func(t *testing.T) {
			device := fixtures.NewFileDevice(t, uint(vector.BytesPerSector), 1, buildEBPBSector(vector))

			ebpb, err := fat32.ReadEBPB(device, 0)
			require.NoError(t, err)

			assert.EqualValues(t, vector.BytesPerSector, ebpb.BytesPerSector)
			assert.EqualValues(t, vector.SectorsPerCluster, ebpb.SectorsPerCluster)
			assert.EqualValues(t, vector.RootCluster, ebpb.RootCluster)
			assert.EqualValues(t, vector.BytesPerSector*vector.SectorsPerCluster, ebpb.BytesPerCluster())
		})
	}
}

func TestReadEBPB_RejectsBadSignature(t *testing.T) {
	buf := make([]byte, 512)
	binary.LittleEndian.PutUint16(buf[11:], 512)
	buf[13] = 8
	device := fixtures.NewFileDevice(t, 512, 1, buf)

	_, err := fat32.ReadEBPB(device, 0)
	assert.ErrorIs(t, err, vfat32.ErrBadSignature)
}

func TestReadEBPB_RejectsBadBytesPerSector(t *testing.T) {
	buf := make([]byte, 512)
	binary.LittleEndian.PutUint16(buf[11:], 700)
	buf[13] = 8
	buf[510], buf[511] = 0x55, 0xAA
	device := fixtures.NewFileDevice(t, 512, 1, buf)

	_, err := fat32.ReadEBPB(device, 0)
	assert.ErrorIs(t, err, vfat32.ErrInvalidData)
}

func TestReadEBPB_RejectsNonPowerOfTwoSectorsPerCluster(t *testing.T) {
	buf := make([]byte, 512)
	binary.LittleEndian.PutUint16(buf[11:], 512)
	buf[13] = 3
	buf[510], buf[511] = 0x55, 0xAA
	device := fixtures.NewFileDevice(t, 512, 1, buf)

	_, err := fat32.ReadEBPB(device, 0)
	assert.ErrorIs(t, err, vfat32.ErrInvalidData)
}
