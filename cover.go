// Cover image generation for epub output.
// Produces a deterministic diamond-tile pattern seeded from the archive
// title, with the title and post count overlaid on a central band.
package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	coverWidth  = 1200
	coverHeight = 1800

	// The central band the pattern leaves clear for the title text.
	coverBandTop    = 650
	coverBandBottom = 1150
)

// generateCover renders a PNG cover for the archive epub. The same title
// always produces the same image, so re-running the export is byte-stable.
func generateCover(title string, postCount int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{0xFF}), image.Point{}, draw.Src)

	seed := sha256.Sum256([]byte(title))
	drawDiamondField(img, seed)

	titleFace, err := loadFace(gobold.TTF, 64)
	if err != nil {
		return nil, fmt.Errorf("loading title font: %w", err)
	}
	metaFace, err := loadFace(goregular.TTF, 32)
	if err != nil {
		return nil, fmt.Errorf("loading meta font: %w", err)
	}

	drawTitleBand(img, title, postCount, titleFace, metaFace)

	// Tool label, right-aligned in the bottom corner.
	label := "chost2html"
	labelW := font.MeasureString(metaFace, label).Ceil()
	drawString(img, label, metaFace, coverWidth-40-labelW, coverHeight-40)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding cover PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// drawDiamondField tiles the cover with diamonds whose size and shade come
// from the seed bytes, skipping the central title band.
func drawDiamondField(img *image.Gray, seed [32]byte) {
	const (
		cols  = 10
		rows  = 15
		cellW = coverWidth / cols
		cellH = coverHeight / rows
	)

	for row := 0; row < rows; row++ {
		cy := row*cellH + cellH/2
		if cy > coverBandTop-cellH/2 && cy < coverBandBottom+cellH/2 {
			continue
		}
		for col := 0; col < cols; col++ {
			b := seed[(row*cols+col)%len(seed)]
			b ^= byte(row*29 + col*47)

			// Mid-gray range so the pattern stays legible on e-ink.
			shade := uint8(0x38 + int(b)%0x90)

			b2 := seed[(row*cols+col+11)%len(seed)] ^ byte(row*7+col*19)
			maxR := cellW / 2
			r := maxR/4 + int(b2)*(maxR-maxR/4)/255

			cx := col*cellW + cellW/2
			// Offset every other row by half a cell for a brick layout.
			if row%2 == 1 {
				cx += cellW / 2
			}
			fillDiamond(img, cx, cy, r, color.Gray{shade})
		}
	}
}

// fillDiamond draws a filled diamond (|dx|+|dy| <= r) centred on (cx, cy).
func fillDiamond(img *image.Gray, cx, cy, r int, c color.Gray) {
	for dy := -r; dy <= r; dy++ {
		span := r - abs(dy)
		for dx := -span; dx <= span; dx++ {
			x, y := cx+dx, cy+dy
			if x >= 0 && x < coverWidth && y >= 0 && y < coverHeight {
				img.SetGray(x, y, c)
			}
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// drawTitleBand clears the central band and renders the word-wrapped title
// with the post count beneath it, both centred.
func drawTitleBand(img *image.Gray, title string, postCount int, titleFace, metaFace font.Face) {
	const padX = 80

	draw.Draw(img,
		image.Rect(0, coverBandTop, coverWidth, coverBandBottom),
		image.NewUniform(color.Gray{0xFF}),
		image.Point{},
		draw.Src,
	)
	for x := padX; x < coverWidth-padX; x++ {
		img.SetGray(x, coverBandTop+20, color.Gray{0x99})
		img.SetGray(x, coverBandBottom-20, color.Gray{0x99})
	}

	lines := wrapText(title, titleFace, coverWidth-padX*2)
	lineHeight := titleFace.Metrics().Height.Ceil() + 8
	metaHeight := metaFace.Metrics().Height.Ceil() + 16

	totalHeight := len(lines)*lineHeight + metaHeight
	y := coverBandTop + (coverBandBottom-coverBandTop-totalHeight)/2 + titleFace.Metrics().Ascent.Ceil()
	for _, line := range lines {
		lineW := font.MeasureString(titleFace, line).Ceil()
		drawString(img, line, titleFace, (coverWidth-lineW)/2, y)
		y += lineHeight
	}

	y += 16
	meta := fmt.Sprintf("%d posts", postCount)
	if postCount == 1 {
		meta = "1 post"
	}
	metaW := font.MeasureString(metaFace, meta).Ceil()
	drawString(img, meta, metaFace, (coverWidth-metaW)/2, y)
}

// drawString renders a string onto a grayscale image in black.
func drawString(img *image.Gray, s string, face font.Face, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{0x00}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// wrapText splits text into lines that fit within maxWidth pixels.
func wrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		trial := current + " " + word
		if font.MeasureString(face, trial).Ceil() <= maxWidth {
			current = trial
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

// loadFace parses an OpenType font at the given size in points.
func loadFace(ttf []byte, sizePt float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
