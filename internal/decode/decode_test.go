package decode

import (
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	serr "minimg/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDecodePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	writePNG(t, path, 8, 4)

	img, err := NewFileDecoder().Decode(path)
	require.NoError(t, err)

	assert.Equal(t, "png", img.Format)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, 8, img.Width())
	assert.Equal(t, 4, img.Height())
	assert.Equal(t, int64(8*4*4), img.Bytes())
	assert.Equal(t, "red.png", img.Name())
	assert.Greater(t, img.Size, int64(0))
	assert.Empty(t, img.Meta)
}

func TestDecodeGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dot.gif")
	f, err := os.Create(path)
	require.NoError(t, err)
	pal := image.NewPaletted(image.Rect(0, 0, 3, 3), color.Palette{color.Black, color.White})
	require.NoError(t, gif.Encode(f, pal, nil))
	require.NoError(t, f.Close())

	img, err := NewFileDecoder().Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "gif", img.Format)
	assert.Equal(t, 3, img.Width())
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	d := NewFileDecoder()

	t.Run("missing file", func(t *testing.T) {
		_, err := d.Decode(filepath.Join(dir, "nope.png"))
		require.Error(t, err)
		assert.True(t, serr.IsFileNotFound(err))
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := filepath.Join(dir, "notes.png")
		require.NoError(t, os.WriteFile(path, []byte("just some text"), 0644))
		_, err := d.Decode(path)
		require.Error(t, err)
		assert.Equal(t, serr.UnsupportedFormat, serr.KindOf(err))
		assert.Contains(t, err.Error(), "text/plain")
	})

	t.Run("corrupt data", func(t *testing.T) {
		path := filepath.Join(dir, "broken.png")
		data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
		require.NoError(t, os.WriteFile(path, data, 0644))
		_, err := d.Decode(path)
		require.Error(t, err)
		assert.Equal(t, serr.DecodeFailed, serr.KindOf(err))
	})
}

func TestSupportHelpers(t *testing.T) {
	assert.True(t, IsSupportedMIME("image/jpeg"))
	assert.True(t, IsSupportedMIME("image/webp"))
	assert.False(t, IsSupportedMIME("image/heic"))
	assert.False(t, IsSupportedMIME("text/plain; charset=utf-8"))

	assert.True(t, HasImageExtension("/a/b/Photo.JPG"))
	assert.True(t, HasImageExtension("scan.tiff"))
	assert.False(t, HasImageExtension("movie.mp4"))
	assert.False(t, HasImageExtension("README"))
}

func TestOrientationName(t *testing.T) {
	assert.Equal(t, "normal", orientationName(1))
	assert.Equal(t, "rotated 90 CW", orientationName(6))
	for _, v := range []int{2, 4, 5, 7} {
		assert.Equal(t, "mirrored", orientationName(v), v)
	}
	for _, v := range []int{0, -1, 9, 255} {
		assert.Empty(t, orientationName(v), v)
	}
}
