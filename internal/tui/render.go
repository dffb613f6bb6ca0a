package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// upperHalf paints the top pixel with the foreground and the bottom pixel
// with the background, giving two square-ish pixels per terminal cell.
const upperHalf = "▀"

// fitSize scales an iw x ih image into at most cols x 2*rows pixels keeping
// the aspect ratio. The height is even so every cell gets two pixels.
func fitSize(iw, ih, cols, rows int) (w, h int) {
	if iw <= 0 || ih <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	maxW, maxH := cols, rows*2
	scale := float64(maxW) / float64(iw)
	if s := float64(maxH) / float64(ih); s < scale {
		scale = s
	}
	w = int(float64(iw) * scale)
	h = int(float64(ih) * scale)
	if w < 1 {
		w = 1
	}
	if h < 2 {
		h = 2
	}
	if h%2 == 1 {
		if h+1 <= maxH {
			h++
		} else {
			h--
		}
	}
	return w, h
}

// renderHalfBlocks draws img into a grid of at most cols x rows cells
func renderHalfBlocks(img image.Image, cols, rows int) string {
	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), cols, rows)
	if w == 0 || h == 0 {
		return ""
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			top, bottom := dst.RGBAAt(x, y), dst.RGBAAt(x, y+1)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", top.R, top.G, top.B))).
				Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", bottom.R, bottom.G, bottom.B)))
			sb.WriteString(style.Render(upperHalf))
		}
	}
	return sb.String()
}
