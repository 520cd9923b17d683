package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xdraw "golang.org/x/image/draw"
)

// previewBackdrop is blended under transparent pixels.
var previewBackdrop = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

// renderPreview draws a PNG as rows of half-block cells, two pixels per
// cell, fitted into cols x rows while keeping the aspect ratio. It also
// returns the PNG's own size.
func renderPreview(data []byte, cols, rows int) (string, image.Point, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", image.Point{}, fmt.Errorf("decode png: %w", err)
	}
	b := img.Bounds()
	size := b.Size()
	if cols <= 0 || rows <= 0 || size.X == 0 || size.Y == 0 {
		return "", size, nil
	}

	w, h := fitBox(size.X, size.Y, cols, rows*2)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := flatten(dst.NRGBAAt(x, y))
			bottom := previewBackdrop
			if y+1 < h {
				bottom = flatten(dst.NRGBAAt(x, y+1))
			}
			cell := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bottom)))
			sb.WriteString(cell.Render("▀"))
		}
		if y+2 < h {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), size, nil
}

// fitBox scales w x h to the largest size inside maxW x maxH.
func fitBox(w, h, maxW, maxH int) (int, int) {
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw := max(1, int(float64(w)*scale+0.5))
	fh := max(1, int(float64(h)*scale+0.5))
	return min(fw, maxW), min(fh, maxH)
}

func flatten(c color.NRGBA) color.NRGBA {
	if c.A == 0xff {
		return c
	}
	a := uint32(c.A)
	mix := func(fg, bg uint8) uint8 {
		return uint8((uint32(fg)*a + uint32(bg)*(0xff-a)) / 0xff)
	}
	return color.NRGBA{
		R: mix(c.R, previewBackdrop.R),
		G: mix(c.G, previewBackdrop.G),
		B: mix(c.B, previewBackdrop.B),
		A: 0xff,
	}
}

func hexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
