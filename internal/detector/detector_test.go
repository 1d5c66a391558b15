package detector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.go")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFingerprint(t *testing.T) {
	path := writeTemp(t, "package main\n")

	sum, modTime, size, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, sum)
	assert.False(t, modTime.IsZero())
	assert.Equal(t, int64(len("package main\n")), size)

	// Same content hashes identically.
	sum2, _, _, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, sum, sum2)
}

func TestFingerprintMissingFile(t *testing.T) {
	_, _, _, err := Fingerprint(filepath.Join(t.TempDir(), "nope.go"))
	assert.Error(t, err)
}

func TestClassifyNew(t *testing.T) {
	path := writeTemp(t, "package main\n")

	change, err := Classify(path, nil)
	require.NoError(t, err)
	assert.Equal(t, New, change.Class)
	assert.NotEqual(t, [32]byte{}, change.Fingerprint)
}

func TestClassifyUnchangedFastPath(t *testing.T) {
	path := writeTemp(t, "package main\n")
	sum, modTime, size, err := Fingerprint(path)
	require.NoError(t, err)

	change, err := Classify(path, &Stored{Fingerprint: sum, ModTime: modTime, SizeBytes: size})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, change.Class)
	assert.Equal(t, sum, change.Fingerprint)
}

func TestClassifyTouchedButIdentical(t *testing.T) {
	path := writeTemp(t, "package main\n")
	sum, _, size, err := Fingerprint(path)
	require.NoError(t, err)

	// Stored mtime differs, content identical: still unchanged.
	stale := &Stored{Fingerprint: sum, ModTime: time.Now().Add(-time.Hour), SizeBytes: size}
	change, err := Classify(path, stale)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, change.Class)
}

func TestClassifyModified(t *testing.T) {
	path := writeTemp(t, "package main\n")
	sum, _, size, err := Fingerprint(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644))

	change, err := Classify(path, &Stored{Fingerprint: sum, ModTime: time.Now().Add(-time.Hour), SizeBytes: size})
	require.NoError(t, err)
	assert.Equal(t, Modified, change.Class)
	assert.NotEqual(t, sum, change.Fingerprint)
}

func TestClassifyMissingFile(t *testing.T) {
	_, err := Classify(filepath.Join(t.TempDir(), "gone.go"), nil)
	assert.Error(t, err)
}

func TestRemoved(t *testing.T) {
	stored := []string{"a.go", "b.go", "c.md"}
	discovered := []string{"a.go", "c.md", "d.go"}

	removed := Removed(stored, discovered)
	assert.Equal(t, []string{"b.go"}, removed)

	assert.Empty(t, Removed(nil, discovered))
	assert.ElementsMatch(t, stored, Removed(stored, nil))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "unchanged", Unchanged.String())
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "modified", Modified.String())
}
