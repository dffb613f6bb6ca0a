package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"minimg/internal/config"
	serr "minimg/internal/errors"
	"minimg/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture lays out:
//
//	b.png  a.PNG  c.jpg(text)  notes.txt  .hidden.png  photo.dat(png)
//	sub/d.png  .secret/e.png
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "b.png"), testutil.PNGBytes(t, 4, 4))
	testutil.WriteFile(t, filepath.Join(dir, "a.PNG"), testutil.PNGBytes(t, 1, 1))
	testutil.WriteFile(t, filepath.Join(dir, "c.jpg"), []byte("not really a jpeg"))
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("hello"))
	testutil.WriteFile(t, filepath.Join(dir, ".hidden.png"), testutil.PNGBytes(t, 2, 2))
	testutil.WriteFile(t, filepath.Join(dir, "photo.dat"), testutil.PNGBytes(t, 8, 8))
	testutil.WriteFile(t, filepath.Join(dir, "sub", "d.png"), testutil.PNGBytes(t, 3, 3))
	testutil.WriteFile(t, filepath.Join(dir, ".secret", "e.png"), testutil.PNGBytes(t, 3, 3))
	return dir
}

func names(r *Result) []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		rel, _ := filepath.Rel(r.Root, e.Path)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestPathsDirectory(t *testing.T) {
	dir := fixture(t)

	res, err := Paths(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png", "c.jpg"}, names(res))
	assert.Equal(t, 0, res.Start)
	assert.Len(t, res.Paths(), 3)
	for _, p := range res.Paths() {
		assert.True(t, filepath.IsAbs(p))
	}
	assert.Positive(t, res.TotalSize())
}

func TestPathsRecursiveAndHidden(t *testing.T) {
	dir := fixture(t)

	res, err := Paths(dir, Options{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png", "c.jpg", "sub/d.png"}, names(res))

	res, err = Paths(dir, Options{Recursive: true, Hidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden.png", ".secret/e.png", "a.PNG", "b.png", "c.jpg", "sub/d.png"}, names(res))
}

func TestPathsSniff(t *testing.T) {
	dir := fixture(t)

	res, err := Paths(dir, Options{Sniff: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png", "photo.dat"}, names(res), "content decides, not the extension")
	for _, e := range res.Entries {
		assert.Equal(t, "image/png", e.MIME)
	}
}

func TestPathsGlobs(t *testing.T) {
	dir := fixture(t)

	res, err := Paths(dir, Options{Recursive: true, Include: []string{"*.png", "*.PNG"}, Exclude: []string{"a.*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png", "sub/d.png"}, names(res))

	res, err = Paths(dir, Options{Recursive: true, Exclude: []string{"sub/*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png", "c.jpg"}, names(res))

	_, err = Paths(dir, Options{Include: []string{"[unclosed"}})
	require.Error(t, err)
	assert.True(t, serr.IsInvalidConfig(err))
}

func TestPathsSortOrders(t *testing.T) {
	dir := fixture(t)
	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "c.jpg"), base, base))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "b.png"), base.Add(time.Minute), base.Add(time.Minute)))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.PNG"), base.Add(2*time.Minute), base.Add(2*time.Minute)))

	res, err := Paths(dir, Options{Sort: SortMTime})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.jpg", "b.png", "a.PNG"}, names(res))

	res, err = Paths(dir, Options{Sort: SortSize})
	require.NoError(t, err)
	got := names(res)
	require.Len(t, got, 3)
	for i := 1; i < len(res.Entries); i++ {
		assert.LessOrEqual(t, res.Entries[i-1].Size, res.Entries[i].Size)
	}
}

func TestPathsFileFocusesSibling(t *testing.T) {
	dir := fixture(t)

	res, err := Paths(filepath.Join(dir, "b.png"), Options{})
	require.NoError(t, err)
	assert.Equal(t, dir, res.Root)
	assert.Equal(t, []string{"a.PNG", "b.png", "c.jpg"}, names(res))
	assert.Equal(t, 1, res.Start)

	// An explicitly named file is kept even when filters would drop it
	res, err = Paths(filepath.Join(dir, "notes.txt"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png", "c.jpg", "notes.txt"}, names(res))
	assert.Equal(t, 3, res.Start)
}

func TestPathsErrors(t *testing.T) {
	_, err := Paths(filepath.Join(t.TempDir(), "missing"), Options{})
	require.Error(t, err)
	assert.True(t, serr.IsFileNotFound(err))

	empty := t.TempDir()
	testutil.WriteFile(t, filepath.Join(empty, "readme.md"), []byte("# nothing here"))
	_, err = Paths(empty, Options{})
	require.Error(t, err)
	assert.True(t, serr.IsNoImages(err))
}

func baseNames(r *Result) []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = filepath.Base(e.Path)
	}
	return out
}

func TestAllJoinsPathsInOrder(t *testing.T) {
	dir := fixture(t)
	other := t.TempDir()
	testutil.WriteFile(t, filepath.Join(other, "x.png"), testutil.PNGBytes(t, 2, 2))
	testutil.WriteFile(t, filepath.Join(other, "y.png"), testutil.PNGBytes(t, 2, 2))
	empty := t.TempDir()
	single := filepath.Join(t.TempDir(), "z.png")
	testutil.WriteFile(t, single, testutil.PNGBytes(t, 1, 1))

	res, err := All([]string{other, empty, dir, single}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Root)
	assert.Len(t, res.Roots, 4)
	assert.Equal(t, []string{"x.png", "y.png", "a.PNG", "b.png", "c.jpg", "z.png"}, baseNames(res))
	assert.Equal(t, 5, res.Start, "starts at the first file argument")

	// A file named before its directory keeps its place; no duplicates
	res, err = All([]string{filepath.Join(dir, "c.jpg"), dir, filepath.Join(other, "y.png")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.jpg", "a.PNG", "b.png", "y.png"}, baseNames(res))
	assert.Equal(t, 0, res.Start)

	// Without a file argument the list starts at the top
	res, err = All([]string{dir, other}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Start)
	assert.Len(t, res.Entries, 5)
}

func TestAllSinglePathAndErrors(t *testing.T) {
	dir := fixture(t)

	res, err := All([]string{filepath.Join(dir, "b.png")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, dir, res.Root)
	assert.Equal(t, []string{dir}, res.Roots)
	assert.Equal(t, 1, res.Start, "one file still opens its directory")

	_, err = All([]string{dir, filepath.Join(dir, "missing.png")}, Options{})
	assert.True(t, serr.IsFileNotFound(err))

	_, err = All([]string{t.TempDir(), t.TempDir()}, Options{})
	assert.True(t, serr.IsNoImages(err))
}

func TestProbe(t *testing.T) {
	dir := fixture(t)

	e, err := Probe(filepath.Join(dir, "photo.dat"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", e.MIME)
	assert.Equal(t, "photo.dat", e.Name())

	e, err = Probe(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Contains(t, e.MIME, "text/plain")

	_, err = Probe(filepath.Join(dir, "sub"))
	assert.Error(t, err)
	_, err = Probe(filepath.Join(dir, "nope.png"))
	assert.True(t, serr.IsFileNotFound(err))
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.New()
	cfg.Scan.Recursive = true
	cfg.Scan.Exclude = []string{"*.raw"}
	cfg.Scan.Sort = SortSize

	opts := OptionsFrom(cfg.Scan)
	assert.True(t, opts.Recursive)
	assert.Equal(t, []string{"*.raw"}, opts.Exclude)
	assert.Equal(t, SortSize, opts.Sort)
}
