// Package fixtures provides test data shared across the module's test
// suites: known-good EBPB field combinations drawn from real media, and
// in-memory block devices (see blockdevice.go).
package fixtures

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// BootSectorVector is one row of known-good EBPB field values, the kind of
// combination an EBPB decoder test wants to assert accepts cleanly rather
// than invent by hand.
type BootSectorVector struct {
	Slug              string `csv:"slug"`
	Description       string `csv:"description"`
	BytesPerSector    uint   `csv:"bytes_per_sector"`
	SectorsPerCluster uint   `csv:"sectors_per_cluster"`
	ReservedSectors   uint   `csv:"reserved_sectors"`
	NumFATs           uint   `csv:"num_fats"`
	SectorsPerFAT32   uint   `csv:"sectors_per_fat32"`
	RootCluster       uint   `csv:"root_cluster"`
	TotalSectors      uint   `csv:"total_sectors"`
}

//go:embed vectors.csv
var rawBootSectorVectors string

var bootSectorVectors map[string]BootSectorVector

func init() {
	bootSectorVectors = make(map[string]BootSectorVector)

	reader := strings.NewReader(rawBootSectorVectors)
	err := gocsv.UnmarshalToCallback(reader, func(row BootSectorVector) error {
		if _, exists := bootSectorVectors[row.Slug]; exists {
			return fmt.Errorf("duplicate boot sector vector slug %q", row.Slug)
		}
		bootSectorVectors[row.Slug] = row
		return nil
	})
	if err != nil {
		panic(fmt.Errorf("fixtures: failed to parse embedded boot sector vectors: %w", err))
	}
}

// BootSectorVectors returns every known-good EBPB field combination, keyed
// by slug.
func BootSectorVectors() map[string]BootSectorVector {
	out := make(map[string]BootSectorVector, len(bootSectorVectors))
	for k, v := range bootSectorVectors {
		out[k] = v
	}
	return out
}

// BootSectorVectorBySlug returns a single named vector, or an error if no
// vector with that slug was loaded.
func BootSectorVectorBySlug(slug string) (BootSectorVector, error) {
	v, ok := bootSectorVectors[slug]
	if !ok {
		return BootSectorVector{}, fmt.Errorf("no boot sector vector named %q", slug)
	}
	return v, nil
}
