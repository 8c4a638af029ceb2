package fat32_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/andaril-io/vfat32"
	"github.com/andaril-io/vfat32/blockio"
	"github.com/andaril-io/vfat32/fat32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildVolume constructs a minimal full volume image: MBR with one FAT32
// partition, EBPB, one FAT, and a data region. It returns a mounted
// *fat32.FileSystem, ready for Open/Read/Seek tests.
func buildVolume(t *testing.T, sectorsPerCluster uint32, fileChain []uint32, fileContent []byte) *fat32.FileSystem {
	const bytesPerSector = 512
	const relativeSector = 1
	const reservedSectors = 1
	const numFATs = 1
	const sectorsPerFAT = 1
	firstFATSector := uint32(reservedSectors)
	firstDataSector := firstFATSector + numFATs*sectorsPerFAT
	rootCluster := uint32(2)

	totalDataClusters := len(fileChain) + 1 // +1 for the root directory's own cluster
	totalSectors := firstDataSector + uint32(totalDataClusters)*sectorsPerCluster

	imageSectors := relativeSector + totalSectors
	image := make([]byte, int(imageSectors)*bytesPerSector)

	// MBR at sector 0.
	partEntry := image[446:462]
	partEntry[0] = 0x80
	partEntry[4] = 0x0C
	binary.LittleEndian.PutUint32(partEntry[8:], relativeSector)
	binary.LittleEndian.PutUint32(partEntry[12:], totalSectors)
	image[510], image[511] = 0x55, 0xAA

	// EBPB at the partition's first sector.
	ebpbBuf := image[relativeSector*bytesPerSector:]
	binary.LittleEndian.PutUint16(ebpbBuf[11:], bytesPerSector)
	ebpbBuf[13] = byte(sectorsPerCluster)
	binary.LittleEndian.PutUint16(ebpbBuf[14:], reservedSectors)
	ebpbBuf[16] = numFATs
	binary.LittleEndian.PutUint32(ebpbBuf[36:], sectorsPerFAT)
	binary.LittleEndian.PutUint32(ebpbBuf[44:], rootCluster)
	binary.LittleEndian.PutUint32(ebpbBuf[32:], totalSectors)
	ebpbBuf[510], ebpbBuf[511] = 0x55, 0xAA

	// FAT, partition-relative.
	fatBuf := image[(relativeSector+firstFATSector)*bytesPerSector:]
	// Root directory: a single cluster, end of chain.
	binary.LittleEndian.PutUint32(fatBuf[rootCluster*4:], 0x0FFFFFF8)
	// File chain, starting at cluster 3.
	fileFirstCluster := uint32(3)
	for i, next := range fileChain {
		binary.LittleEndian.PutUint32(fatBuf[(fileFirstCluster+uint32(i))*4:], next)
	}

	bytesPerCluster := bytesPerSector * sectorsPerCluster
	clusterData := func(cluster uint32) []byte {
		start := (relativeSector+firstDataSector)*bytesPerSector + (cluster-2)*bytesPerCluster
		return image[start : start+bytesPerCluster]
	}

	// Root directory contents: one file entry named FILE.TXT pointing at
	// fileFirstCluster, with Size == len(fileContent).
	rootDir := clusterData(rootCluster)
	copy(rootDir[0:8], "FILE    ")
	copy(rootDir[8:11], "TXT")
	rootDir[11] = 0x20 // ARCHIVE
	binary.LittleEndian.PutUint16(rootDir[20:], uint16(fileFirstCluster>>16))
	binary.LittleEndian.PutUint16(rootDir[26:], uint16(fileFirstCluster))
	binary.LittleEndian.PutUint32(rootDir[28:], uint32(len(fileContent)))

	// File contents, spread across its cluster chain.
	remaining := fileContent
	for i := 0; i < len(fileChain); i++ {
		dest := clusterData(fileFirstCluster + uint32(i))
		n := copy(dest, remaining)
		remaining = remaining[n:]
	}

	device := blockio.NewFileDevice(bytes.NewReader(image), bytesPerSector)
	fs, err := fat32.Mount(device)
	require.NoError(t, err)
	return fs
}

func TestFile_ReadWholeContents(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 60) // 600 bytes, spans 2 512-byte clusters
	fs := buildVolume(t, 1, []uint32{4, 0x0FFFFFF8}, content)

	handle, err := fs.Open("/FILE.TXT")
	require.NoError(t, err)
	file, ok := handle.(*fat32.File)
	require.True(t, ok)

	assert.EqualValues(t, len(content), file.Size())

	var out bytes.Buffer
	buf := make([]byte, 7) // deliberately not a multiple of cluster size
	for {
		n, err := file.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, content, out.Bytes())
}

func TestFile_SeekBoundsChecking(t *testing.T) {
	content := []byte("hello world")
	fs := buildVolume(t, 1, []uint32{0x0FFFFFF8}, content)

	handle, err := fs.Open("/FILE.TXT")
	require.NoError(t, err)
	file := handle.(*fat32.File)

	pos, err := file.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	_, err = file.Seek(1, io.SeekEnd)
	assert.ErrorIs(t, err, vfat32.ErrInvalidInput)

	pos, err = file.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, len(content), pos)

	_, err = file.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileSystem_OpenRejectsRelativeComponents(t *testing.T) {
	fs := buildVolume(t, 1, []uint32{0x0FFFFFF8}, []byte("x"))

	_, err := fs.Open("/../FILE.TXT")
	assert.ErrorIs(t, err, vfat32.ErrInvalidInput)
}

func TestFileSystem_OpenRequiresAbsolutePath(t *testing.T) {
	fs := buildVolume(t, 1, []uint32{0x0FFFFFF8}, []byte("x"))

	_, err := fs.Open("FILE.TXT")
	assert.ErrorIs(t, err, vfat32.ErrInvalidInput)
}

func TestFileSystem_OpenCaseInsensitive(t *testing.T) {
	fs := buildVolume(t, 1, []uint32{0x0FFFFFF8}, []byte("x"))

	_, err := fs.Open("/file.txt")
	assert.NoError(t, err)
}
