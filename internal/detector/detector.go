// Package detector decides which files need (re)indexing by comparing
// on-disk state against stored index metadata.
package detector

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"
)

// Classification describes how a file on disk relates to the stored index.
type Classification int

const (
	// Unchanged means the stored fingerprint matches the current content.
	Unchanged Classification = iota
	// New means no record exists for the file.
	New
	// Modified means the content differs from the stored fingerprint.
	Modified
)

func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case New:
		return "new"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Change is the classification result for a single file.
type Change struct {
	Path        string
	Class       Classification
	Fingerprint [32]byte
	ModTime     time.Time
	SizeBytes   int64
}

// Stored is the subset of index metadata needed to classify a file.
type Stored struct {
	Fingerprint [32]byte
	ModTime     time.Time
	SizeBytes   int64
}

// Fingerprint computes the sha256 content hash of a file along with its
// modification time and size.
func Fingerprint(path string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, time.Time{}, 0, fmt.Errorf("failed to hash file: %w", err)
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum, info.ModTime(), info.Size(), nil
}

// Classify compares a file on disk against its stored metadata. A nil stored
// record means the file is New. When mtime and size both match the stored
// values the content hash is not recomputed; content equality is assumed.
func Classify(path string, stored *Stored) (Change, error) {
	if stored != nil {
		info, err := os.Stat(path)
		if err != nil {
			return Change{}, fmt.Errorf("failed to stat file: %w", err)
		}
		if info.ModTime().Equal(stored.ModTime) && info.Size() == stored.SizeBytes {
			return Change{
				Path:        path,
				Class:       Unchanged,
				Fingerprint: stored.Fingerprint,
				ModTime:     info.ModTime(),
				SizeBytes:   info.Size(),
			}, nil
		}
	}

	sum, modTime, size, err := Fingerprint(path)
	if err != nil {
		return Change{}, err
	}

	change := Change{
		Path:        path,
		Fingerprint: sum,
		ModTime:     modTime,
		SizeBytes:   size,
	}
	switch {
	case stored == nil:
		change.Class = New
	case sum == stored.Fingerprint:
		// Touched but content identical. Metadata is refreshed so the fast
		// path applies on the next run.
		change.Class = Unchanged
	default:
		change.Class = Modified
	}
	return change, nil
}

// Removed returns the stored paths that are absent from the current walk, in
// no particular order.
func Removed(storedPaths []string, discovered []string) []string {
	seen := make(map[string]struct{}, len(discovered))
	for _, path := range discovered {
		seen[path] = struct{}{}
	}

	removed := make([]string, 0)
	for _, path := range storedPaths {
		if _, ok := seen[path]; !ok {
			removed = append(removed, path)
		}
	}
	return removed
}
