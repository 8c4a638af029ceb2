package fat32

import (
	"io"

	"github.com/andaril-io/vfat32"
)

// File is a seekable, read-only view of a file's contents. It holds its
// directory-entry fields (name, size, metadata, first cluster), the current
// offset, and a pointer back to the shared FileSystem; it caches none of
// the file's data.
type File struct {
	fs           *FileSystem
	name         string
	firstCluster Cluster
	size         int64
	offset       int64
	metadata     Metadata
}

// Name returns the file's decoded name (short or LFN-assembled).
func (f *File) Name() string { return f.name }

// Size returns the file's size in bytes, as recorded in its directory entry.
func (f *File) Size() int64 { return f.size }

// Metadata returns the decoded timestamps and raw on-disk attribute byte
// from the file's directory entry.
func (f *File) Metadata() Metadata { return f.metadata }

// IsDir reports false; present so File and Dir satisfy a common shape for
// callers that type-switch on fs.Open's return value.
func (f *File) IsDir() bool { return false }

// Seek repositions the file's read offset:
//   - io.SeekStart: absolute.
//   - io.SeekEnd: size+offset, must land in [0, size].
//   - io.SeekCurrent: current+offset, must land in [0, size].
//
// Seeking to exactly size is allowed (reads at that position return EOF);
// seeking beyond it is ErrInvalidInput.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekEnd:
		target = f.size + offset
	case io.SeekCurrent:
		target = f.offset + offset
	default:
		return 0, vfat32.ErrInvalidInput.WithMessage("unknown whence value")
	}

	if target < 0 || target > f.size {
		return 0, vfat32.ErrInvalidInput.WithMessage("seek target out of range")
	}

	f.offset = target
	return f.offset, nil
}

// Read serves bytes starting at the file's current offset. It delegates a
// single cluster read to the cluster-chain reader and advances the offset by
// however many bytes were actually returned; callers that want the full
// remaining contents must loop until Read returns io.EOF, same as any
// io.Reader.
//
// offset/bytesPerCluster is a position in the chain, not a cluster number
// itself: this walks the FAT chain from the first cluster that many times
// via walkChain rather than treating the quotient as a cluster number
// directly.
func (f *File) Read(buf []byte) (int, error) {
	if f.offset >= f.size {
		return 0, io.EOF
	}

	remaining := f.size - f.offset
	toRead := int64(len(buf))
	if toRead > remaining {
		toRead = remaining
	}
	if toRead == 0 {
		return 0, nil
	}

	bytesPerCluster := int64(f.fs.clusters.BytesPerCluster())
	clusterIndex := uint32(f.offset / bytesPerCluster)
	offsetInCluster := uint32(f.offset % bytesPerCluster)

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	cluster, err := walkChain(f.fs.fat, f.firstCluster, clusterIndex)
	if err != nil {
		return 0, err
	}

	n, err := f.fs.clusters.ReadCluster(cluster, offsetInCluster, buf[:toRead])
	if err != nil {
		return 0, err
	}

	f.offset += int64(n)
	return n, nil
}
