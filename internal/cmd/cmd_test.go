package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minimg/internal/cache"
	"minimg/internal/config"
	serr "minimg/internal/errors"
	"minimg/internal/testutil"
	"minimg/internal/watch"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WritePNG(t, dir, "a.png", 4, 4)
	testutil.WritePNG(t, dir, "b.png", 7, 3)
	testutil.WritePNG(t, dir, "c.png", 2, 2)
	testutil.CreateFilesWithContent(t, dir, map[string]string{"notes.txt": "not an image"})
	return dir
}

// execute runs the command tree with a config file that does not exist, so
// every run starts from the defaults
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	hasConfig := false
	for _, a := range args {
		if a == "--config" {
			hasConfig = true
		}
	}
	if !hasConfig {
		args = append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	}

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return testutil.StripANSI(out.String()), err
}

func TestScanCommand(t *testing.T) {
	dir := fixtureDir(t)

	out, err := execute(t, "scan", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 images in")
	assert.Contains(t, out, "a.png")
	assert.Contains(t, out, "b.png")
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, "total")
	assert.NotContains(t, out, "notes.txt")
}

func TestScanCommandJSON(t *testing.T) {
	dir := fixtureDir(t)

	out, err := execute(t, "scan", "--json", filepath.Join(dir, "b.png"))
	require.NoError(t, err)

	var got scanOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Entries, 3)
	assert.Equal(t, 1, got.Start, "a file argument focuses that file")
	assert.Equal(t, "b.png", filepath.Base(got.Entries[got.Start].Path))
	for _, e := range got.Entries {
		assert.Equal(t, "image/png", e.MIME)
		assert.Positive(t, e.Size)
	}
}

func TestScanCommandErrors(t *testing.T) {
	_, err := execute(t, "scan", t.TempDir())
	assert.True(t, serr.IsNoImages(err), "got %v", err)

	_, err = execute(t, "scan", filepath.Join(t.TempDir(), "nope"))
	assert.True(t, serr.IsFileNotFound(err), "got %v", err)
}

func TestInfoCommand(t *testing.T) {
	dir := fixtureDir(t)

	out, err := execute(t, "info", filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	assert.Contains(t, out, "b.png")
	assert.Contains(t, out, "7x3")
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, "no EXIF metadata")

	_, err = execute(t, "info", filepath.Join(dir, "gone.png"))
	assert.True(t, serr.IsFileNotFound(err), "got %v", err)

	_, err = execute(t, "info", filepath.Join(dir, "notes.txt"))
	assert.Equal(t, serr.UnsupportedFormat, serr.KindOf(err))

	_, err = execute(t, "info")
	assert.Error(t, err, "a file argument is required")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimg", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "radius: 5")

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err, "an existing file is kept")

	_, err = execute(t, "config", "init", "--force", "--config", path)
	assert.NoError(t, err)

	loaded, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.New().Cache, loaded.Cache)
}

func TestConfigShowAndThemes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  workers: 2\nui:\n  theme: ocean\n"), 0644))

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 2")
	assert.Contains(t, out, "radius: 5")

	out, err = execute(t, "config", "themes", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "* ocean")
	assert.Contains(t, out, "  sunset")
}

func TestRootRejectsInvalidSettings(t *testing.T) {
	dir := fixtureDir(t)

	_, err := execute(t, "--radius=-1", dir)
	assert.True(t, serr.IsInvalidConfig(err), "got %v", err)

	_, err = execute(t, "--workers=0", dir)
	assert.True(t, serr.IsInvalidConfig(err), "got %v", err)

	for _, start := range []string{"--start=0", "--start=-2"} {
		_, err = execute(t, start, dir)
		assert.ErrorIs(t, err, serr.ErrIndexOutOfRange, start)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cache: [oops"), 0644))
	_, err = execute(t, "--config", bad, dir)
	assert.True(t, serr.IsInvalidConfig(err), "got %v", err)

	_, err = execute(t, t.TempDir())
	assert.True(t, serr.IsNoImages(err), "got %v", err)
}

// firstResult waits for the result the loader publishes on construction
func firstResult(t *testing.T, l *cache.Loader) cache.Result {
	t.Helper()
	select {
	case r := <-l.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no initial result")
		return cache.Result{}
	}
}

func TestViewRunsViewerAndShutsDown(t *testing.T) {
	dir := fixtureDir(t)
	cfg := config.New()
	cfg.Cache.Radius = 1
	cfg.Cache.WaitTimeoutMS = 5000

	var loader *cache.Loader
	err := view(cfg, []string{dir}, -1, func(l *cache.Loader, _ *config.Config, src watch.Source) error {
		loader = l
		assert.NotNil(t, src, "watching is on by default")

		first := firstResult(t, l)
		assert.Equal(t, "1/3 a.png", first.Identity())
		assert.Equal(t, 4, first.Image.Width())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := l.Navigate(ctx, cache.Move(cache.Right))
		require.NoError(t, err)
		assert.Equal(t, "2/3 b.png", res.Identity())
		return nil
	})
	require.NoError(t, err)

	require.NotNil(t, loader)
	_, err = loader.Send(cache.Move(cache.Right))
	assert.ErrorIs(t, err, serr.ErrLoaderStopped)
}

func TestViewStartOverride(t *testing.T) {
	dir := fixtureDir(t)
	cfg := config.New()
	cfg.Watch.Enabled = false

	err := view(cfg, []string{dir}, 2, func(l *cache.Loader, _ *config.Config, src watch.Source) error {
		assert.Nil(t, src)
		assert.Equal(t, "3/3 c.png", firstResult(t, l).Identity())
		return nil
	})
	require.NoError(t, err)

	err = view(cfg, []string{dir}, 9, func(*cache.Loader, *config.Config, watch.Source) error {
		t.Fatal("viewer must not run")
		return nil
	})
	assert.Equal(t, serr.IndexOutOfRange, serr.KindOf(err))
}

func TestViewReturnsViewerError(t *testing.T) {
	dir := fixtureDir(t)
	cfg := config.New()
	cfg.Watch.Enabled = false

	boom := serr.New("terminal went away")
	err := view(cfg, []string{filepath.Join(dir, "c.png")}, -1, func(l *cache.Loader, _ *config.Config, _ watch.Source) error {
		assert.Equal(t, "3/3 c.png", firstResult(t, l).Identity())
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestViewMultiplePaths(t *testing.T) {
	first := t.TempDir()
	testutil.WritePNG(t, first, "a.png", 2, 2)
	testutil.WritePNG(t, first, "b.png", 2, 2)
	second := t.TempDir()
	testutil.WritePNG(t, second, "c.png", 2, 2)
	testutil.WritePNG(t, second, "d.png", 2, 2)
	extra := testutil.WritePNG(t, t.TempDir(), "z.png", 3, 1)

	cfg := config.New()
	cfg.Watch.Enabled = false

	err := view(cfg, []string{first, second, extra}, -1, func(l *cache.Loader, _ *config.Config, _ watch.Source) error {
		assert.Equal(t, 5, l.Len())
		assert.Equal(t, "5/5 z.png", firstResult(t, l).Identity(), "opens at the file argument")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := l.Navigate(ctx, cache.Goto(2))
		require.NoError(t, err)
		assert.Equal(t, "3/5 c.png", res.Identity())
		return nil
	})
	require.NoError(t, err)
}

func TestScanCommandMultiplePaths(t *testing.T) {
	first := fixtureDir(t)
	second := t.TempDir()
	testutil.WritePNG(t, second, "x.png", 2, 2)

	out, err := execute(t, "scan", "--json", second, filepath.Join(first, "b.png"), first)
	require.NoError(t, err)

	var got scanOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got.Root)
	assert.Len(t, got.Roots, 3)

	var names []string
	for _, e := range got.Entries {
		names = append(names, filepath.Base(e.Path))
	}
	// b.png keeps the position of its file argument
	assert.Equal(t, []string{"x.png", "b.png", "a.png", "c.png"}, names)
	assert.Equal(t, 1, got.Start)

	out, err = execute(t, "scan", second, first)
	require.NoError(t, err)
	assert.Contains(t, out, "4 images from 2 paths")
}
