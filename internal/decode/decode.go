// Package decode turns image files into in-memory pictures. It sniffs the
// content type before decoding so unsupported files fail with a clear reason,
// and collects EXIF metadata when the format carries it.
package decode

import (
	"bytes"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	serr "minimg/internal/errors"
	"minimg/internal/log"
)

// Image is a decoded picture. Pixels is never mutated after decoding, so an
// Image may be shared between goroutines.
type Image struct {
	Path   string
	Format string // format name reported by image.Decode
	MIME   string
	Size   int64 // file size in bytes
	Pixels image.Image
	Meta   map[string]string
}

// Width returns the pixel width
func (i *Image) Width() int {
	return i.Pixels.Bounds().Dx()
}

// Height returns the pixel height
func (i *Image) Height() int {
	return i.Pixels.Bounds().Dy()
}

// Bytes estimates the resident size of the decoded pixels (4 bytes per pixel)
func (i *Image) Bytes() int64 {
	return int64(i.Width()) * int64(i.Height()) * 4
}

// Name returns the base name of the file
func (i *Image) Name() string {
	return filepath.Base(i.Path)
}

// Supported MIME types, matching the registered decoders
var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// Extensions lists the file extensions of the supported formats
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedMIME reports whether a decoder is registered for the MIME type
func IsSupportedMIME(mime string) bool {
	return supported[strings.SplitN(mime, ";", 2)[0]]
}

// HasImageExtension reports whether path ends with a supported extension
func HasImageExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var registerExif sync.Once

// FileDecoder decodes images from the local filesystem. It is safe for
// concurrent use.
type FileDecoder struct {
	// SkipExif disables metadata extraction
	SkipExif bool
}

// NewFileDecoder creates a decoder with EXIF parsing enabled
func NewFileDecoder() *FileDecoder {
	registerExif.Do(func() {
		exif.RegisterParsers(mknote.All...)
	})
	return &FileDecoder{}
}

// Decode reads and decodes the file at path
func (d *FileDecoder) Decode(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("image not found", path, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("cannot read image", path, serr.FileAccessDenied, err)
	}

	mime := mimetype.Detect(data)
	if !IsSupportedMIME(mime.String()) {
		return nil, serr.NewFileError("unsupported image format "+mime.String(), path, serr.UnsupportedFormat, nil)
	}

	pixels, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, serr.NewFileError("corrupt "+mime.String()+" data", path, serr.DecodeFailed, err)
	}

	img := &Image{
		Path:   path,
		Format: format,
		MIME:   mime.String(),
		Size:   int64(len(data)),
		Pixels: pixels,
		Meta:   map[string]string{},
	}
	if !d.SkipExif && (format == "jpeg" || format == "tiff") {
		readExif(data, img)
	}
	return img, nil
}

// readExif copies the interesting EXIF tags into img.Meta. Missing or broken
// EXIF data is not an error.
func readExif(data []byte, img *Image) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		log.LogWithFields(log.F("path", img.Path)).Debugf("no EXIF data: %v", err)
		return
	}

	for name, field := range map[string]exif.FieldName{
		"DateTimeOriginal": exif.DateTimeOriginal,
		"CameraMake":       exif.Make,
		"CameraModel":      exif.Model,
		"LensModel":        exif.LensModel,
	} {
		if tag, err := x.Get(field); err == nil {
			if s, err := tag.StringVal(); err == nil && s != "" {
				img.Meta[name] = strings.TrimSpace(s)
			}
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			if name := orientationName(v); name != "" {
				img.Meta["Orientation"] = name
			}
		}
	}
}

// orientationName describes the EXIF orientation tag; values outside 1-8
// are not valid and yield ""
func orientationName(v int) string {
	switch v {
	case 1:
		return "normal"
	case 3:
		return "rotated 180"
	case 6:
		return "rotated 90 CW"
	case 8:
		return "rotated 90 CCW"
	case 2, 4, 5, 7:
		return "mirrored"
	default:
		return ""
	}
}
