// Package diag implements a read-only consistency scan over a mounted FAT32
// volume. Nothing here mutates the volume; it exists to give operators
// visibility into a damaged image without requiring a separate fsck tool.
package diag

import (
	"fmt"

	"github.com/andaril-io/vfat32/fat32"
	"github.com/hashicorp/go-multierror"
)

// Report is the result of a Validate pass.
type Report struct {
	FilesVisited int
	DirsVisited  int
	// Issues is every anomaly found. A non-nil Issues does not mean
	// Validate failed outright — see Validate's doc comment.
	Issues error
}

// Validate walks every directory and file reachable from fs's root,
// checking for three classes of corruption go-multierror aggregates into
// one report rather than stopping at the first:
//
//   - a cluster reachable from more than one file or directory's chain
//     ("cross-linked" clusters), found by walking each chain in full rather
//     than comparing only first-cluster numbers
//   - any error surfaced while decoding a directory or walking a chain,
//     recorded and treated as a reason to skip that subtree rather than
//     abort the whole scan
//   - a cluster the FAT marks allocated (StatusData or StatusEoc) that the
//     directory-tree walk never reached ("orphaned" chains)
//
// Validate itself only returns a non-nil error for a failure reading the
// root directory; everything found deeper in the tree is collected into
// the returned Report's Issues field so that one damaged subdirectory
// doesn't hide problems found elsewhere in the volume.
func Validate(fs *fat32.FileSystem) (*Report, error) {
	report := &Report{}
	walker := &scanner{
		fs:     fs,
		seen:   make(map[fat32.Cluster]string),
		report: report,
	}

	root := fs.Root()
	rootChain, err := fs.ChainClusters(root.FirstCluster())
	if err != nil {
		return report, err
	}
	walker.markChain(rootChain, "/")

	if err := walker.walkDir(root, "/"); err != nil {
		return report, err
	}

	walker.findOrphanedChains()
	report.Issues = walker.issues.ErrorOrNil()

	return report, nil
}

type scanner struct {
	fs     *fat32.FileSystem
	seen   map[fat32.Cluster]string
	issues *multierror.Error
	report *Report
}

func (s *scanner) walkDir(dir *fat32.Dir, path string) error {
	s.report.DirsVisited++

	entries, err := dir.Entries()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}

		childPath := path + entry.Name
		if entry.IsDir {
			childPath += "/"
		}

		chain, err := s.fs.ChainClusters(entry.FirstCluster)
		if err != nil {
			s.issues = multierror.Append(s.issues, fmt.Errorf("%s: %w", childPath, err))
			continue
		}
		if crossLinked := s.markChain(chain, childPath); crossLinked {
			continue
		}

		if entry.IsDir {
			childDir := dir.ChildDir(entry)
			if err := s.walkDir(childDir, childPath); err != nil {
				s.issues = multierror.Append(s.issues, fmt.Errorf("%s: %w", childPath, err))
			}
			continue
		}

		s.report.FilesVisited++
	}

	return nil
}

// markChain records every cluster in chain as owned by path, reporting a
// cross-link for any cluster already owned by a different path, and reports
// whether the chain collided with an existing owner anywhere along its
// length — not just at its first cluster. A colliding chain's entry is
// treated by the caller like a duplicate: its own subtree is not walked
// again, since every cluster in it is already accounted for.
func (s *scanner) markChain(chain []fat32.Cluster, path string) bool {
	crossLinked := false
	for _, cluster := range chain {
		if owner, dup := s.seen[cluster]; dup {
			if owner == path {
				continue
			}
			s.issues = multierror.Append(s.issues, fmt.Errorf(
				"cluster %d is reachable from both %q and %q", cluster, owner, path))
			crossLinked = true
			continue
		}
		s.seen[cluster] = path
	}
	return crossLinked
}

// findOrphanedChains scans every data cluster on the volume and reports one
// the directory-tree walk never visited but whose FAT entry still looks
// allocated (StatusData or StatusEoc) — a chain whose owning directory entry
// was lost or never written.
func (s *scanner) findOrphanedChains() {
	total := s.fs.TotalClusters()

	for i := uint32(0); i < total; i++ {
		cluster := fat32.FirstUsableCluster + fat32.Cluster(i)
		if _, visited := s.seen[cluster]; visited {
			continue
		}

		status, err := s.fs.ClusterStatus(cluster)
		if err != nil {
			s.issues = multierror.Append(s.issues, fmt.Errorf(
				"cluster %d: %w", cluster, err))
			continue
		}

		if status == fat32.StatusData || status == fat32.StatusEoc {
			s.issues = multierror.Append(s.issues, fmt.Errorf(
				"cluster %d is allocated but not reachable from any directory entry", cluster))
		}
	}
}
