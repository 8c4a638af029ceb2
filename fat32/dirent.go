package fat32

import (
	"strings"
	"time"
	"unicode/utf16"

	"github.com/andaril-io/vfat32"
)

// DirentSize is the size of one on-disk directory record, in bytes.
const DirentSize = 32

// Attributes is the on-disk attribute byte of a directory entry.
type Attributes uint8

const (
	AttrReadOnly  Attributes = 0x01
	AttrHidden    Attributes = 0x02
	AttrSystem    Attributes = 0x04
	AttrVolumeID  Attributes = 0x08
	AttrDirectory Attributes = 0x10
	AttrArchive   Attributes = 0x20

	// attrLFN is the pseudo-attribute value (READ_ONLY|HIDDEN|SYSTEM|VOLUME_ID)
	// that marks a record as a long-filename entry. Detection must compare
	// for exact equality, not a bit test: a regular entry can legitimately
	// have all four of those bits set without being an LFN record.
	attrLFN Attributes = 0x0F
)

func (a Attributes) IsDir() bool { return a&AttrDirectory != 0 }

const (
	entryUnusedTerminator = 0x00
	entryDeletedMarker    = 0xE5
)

// lfnMaxSlots is the highest legal LFN sequence number: bits 0-4 of the
// sequence-number byte, masked, with bit 6 marking the last logical entry in
// a group.
const lfnMaxSlots = 0x1F

const lfnLastEntryBit = 0x40

// Metadata carries the decoded timestamps and raw on-disk attribute byte of
// a directory entry.
type Metadata struct {
	Attributes   Attributes
	Created      time.Time
	LastAccessed time.Time
	LastModified time.Time
}

// Entry is one decoded directory record: either a file or a directory.
type Entry struct {
	Name         string
	Metadata     Metadata
	FirstCluster Cluster
	Size         uint32
	IsDir        bool
}

// lfnSlot is one reconstructed LFN record's 13 UCS-2 code units.
type lfnSlot [13]uint16

func (s lfnSlot) codeUnits() []uint16 {
	return s[:]
}

// parseRawLFN extracts the 13 UCS-2 code units from a raw 32-byte LFN
// record: 5 code units at bytes 1-10, 6 at bytes 14-25, 2 at bytes 28-31.
func parseRawLFN(record []byte) lfnSlot {
	var slot lfnSlot
	idx := 0
	for off := 1; off < 11; off += 2 {
		slot[idx] = uint16(record[off]) | uint16(record[off+1])<<8
		idx++
	}
	for off := 14; off < 26; off += 2 {
		slot[idx] = uint16(record[off]) | uint16(record[off+1])<<8
		idx++
	}
	for off := 28; off < 32; off += 2 {
		slot[idx] = uint16(record[off]) | uint16(record[off+1])<<8
		idx++
	}
	return slot
}

// assembleLFNName concatenates slots 0..count-1 in order, truncates at the
// first 0x0000 or 0xFFFF code unit, and decodes the remainder as UTF-16 with
// lossy replacement.
func assembleLFNName(slots []lfnSlot, count int) string {
	units := make([]uint16, 0, count*13)
	for i := 0; i < count; i++ {
		units = append(units, slots[i].codeUnits()...)
	}

	for i, u := range units {
		if u == 0x0000 || u == 0xFFFF {
			units = units[:i]
			break
		}
	}

	return string(utf16.Decode(units))
}

// decodeShortName reconstructs the 8.3 name from the raw 11-byte
// name+extension field, cutting each component at its first 0x00 or 0x20
// byte and joining them with a dot only when an extension is present.
func decodeShortName(name [8]byte, ext [3]byte) string {
	baseName := shortNameComponent(name[:])
	extension := shortNameComponent(ext[:])

	if extension == "" {
		return baseName
	}
	return baseName + "." + extension
}

func shortNameComponent(raw []byte) string {
	end := len(raw)
	for i, b := range raw {
		if b == 0x00 || b == 0x20 {
			end = i
			break
		}
	}
	return string(raw[:end])
}

// DirIterator walks a directory's decoded cluster-chain bytes, producing
// Entry values one record at a time. It is exported so callers that want to
// stream entries rather than collect them all via Dir.Entries() can drive it
// directly.
type DirIterator struct {
	data     []byte
	pos      int
	lfnSlots [lfnMaxSlots]lfnSlot
	lfnMax   int // highest populated slot index + 1; 0 means "no LFN pending"
}

// NewDirIterator builds an iterator over a directory's raw, already
// cluster-chain-assembled byte contents.
func NewDirIterator(data []byte) *DirIterator {
	return &DirIterator{data: data}
}

// Next returns the next Entry, or ok=false once iteration terminates (first
// byte 0x00, or the underlying byte slice is exhausted).
func (it *DirIterator) Next() (entry Entry, ok bool, err error) {
	for it.pos+DirentSize <= len(it.data) {
		record := it.data[it.pos : it.pos+DirentSize]
		it.pos += DirentSize

		firstByte := record[0]
		if firstByte == entryUnusedTerminator {
			return Entry{}, false, nil
		}
		if firstByte == entryDeletedMarker {
			// The LFN scratchpad is left untouched on a deleted record; a
			// stray deleted entry between a long-name group and its short
			// entry is rare enough on real media that clearing it isn't
			// worth the extra branch.
			continue
		}

		attr := Attributes(record[11])
		if attr == attrLFN {
			seq := record[0] & lfnMaxSlots
			if seq < 1 {
				return Entry{}, false, vfat32.ErrInvalidData.WithMessage("LFN sequence number out of range")
			}
			slot := parseRawLFN(record)
			it.lfnSlots[seq-1] = slot
			if int(seq) > it.lfnMax {
				it.lfnMax = int(seq)
			}
			continue
		}

		e := decodeRegularEntry(record)
		if it.lfnMax > 0 {
			e.Name = assembleLFNName(it.lfnSlots[:], it.lfnMax)
		}
		it.lfnMax = 0

		return e, true, nil
	}

	return Entry{}, false, nil
}

func decodeRegularEntry(record []byte) Entry {
	var name [8]byte
	var ext [3]byte
	copy(name[:], record[0:8])
	copy(ext[:], record[8:11])

	attr := Attributes(record[11])

	createdDate := le16(record[16:18])
	createdTime := le16(record[14:16])
	lastAccessDate := le16(record[18:20])
	firstClusterHigh := le16(record[20:22])
	lastModTime := le16(record[22:24])
	lastModDate := le16(record[24:26])
	firstClusterLow := le16(record[26:28])
	size := le32(record[28:32])

	firstCluster := Cluster(uint32(firstClusterHigh)<<16 | uint32(firstClusterLow))

	return Entry{
		Name: decodeShortName(name, ext),
		Metadata: Metadata{
			Attributes:   attr,
			Created:      fatTimestamp(createdDate, createdTime),
			LastAccessed: fatTimestamp(lastAccessDate, 0),
			LastModified: fatTimestamp(lastModDate, lastModTime),
		},
		FirstCluster: firstCluster,
		Size:         size,
		IsDir:        attr.IsDir(),
	}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// fatTimestamp decodes a FAT (date, time) pair into a time.Time. Bit layout:
// date = year-1980(15..9) | month(8..5) | day(4..0);
// time = hour(15..11) | minute(10..5) | seconds/2(4..0).
func fatTimestamp(date, fatTime uint16) time.Time {
	day := int(date & 0x1F)
	month := int((date >> 5) & 0x0F)
	year := 1980 + int(date>>9)

	seconds := int(fatTime&0x1F) * 2
	minutes := int((fatTime >> 5) & 0x3F)
	hours := int(fatTime >> 11)

	if day == 0 || month == 0 {
		return vfat32.UndefinedTimestamp
	}

	return time.Date(year, time.Month(month), day, hours, minutes, seconds, 0, time.UTC)
}

// caseFold applies ASCII case folding for case-insensitive name lookups.
// Non-ASCII code points pass through unchanged and are compared byte-exact.
func caseFold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
