// Package card renders the final greeting card: the generated square image
// on top of a story-sized canvas, an optional caption fitted below it, and a
// gold border, encoded as a JPEG under a byte ceiling.
package card

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"log/slog"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/annaleodit/Celebrate-the-world/core/logger"
)

const (
	baseSize = 1080
	canvasW  = 1080
	canvasH  = 1920

	borderWidth = 12
	textMargin  = 80

	maxFontSize = 72
	minFontSize = 28
	fontStep    = 4

	maxEncodedBytes = 300 * 1024
	startQuality    = 90
	minQuality      = 40
	qualityStep     = 5
)

var (
	backgroundColor = color.RGBA{R: 11, G: 16, B: 38, A: 255}
	accentColor     = color.RGBA{R: 212, G: 175, B: 55, A: 255}
	captionColor    = color.RGBA{R: 245, G: 238, B: 220, A: 255}
)

// CompositionError wraps any decode, layout, or encode failure.
type CompositionError struct {
	Stage string
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("card: %s failed: %v", e.Stage, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

func compositionErr(stage string, err error) *CompositionError {
	return &CompositionError{Stage: stage, Err: err}
}

// Composer lays out and encodes greeting cards. Safe for concurrent use;
// a font face is built per call.
type Composer struct {
	font *opentype.Font
}

// NewComposer parses the embedded caption font once.
func NewComposer() (*Composer, error) {
	fnt, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("card: parse font: %w", err)
	}
	return &Composer{font: fnt}, nil
}

// Compose builds the final card. An empty caption skips text layout
// entirely. Any failure comes back as *CompositionError.
func (c *Composer) Compose(base []byte, caption string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, compositionErr("decode", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	// Normalize the generated image to the fixed square and pin it to the top.
	top := image.Rect(0, 0, baseSize, baseSize)
	draw.CatmullRom.Scale(canvas, top, src, src.Bounds(), draw.Over, nil)

	var (
		fontSize int
		lines    []string
	)
	if caption != "" {
		fontSize, lines, err = c.drawCaption(canvas, caption)
		if err != nil {
			return nil, compositionErr("caption", err)
		}
	}

	drawBorder(canvas)

	encoded, quality, err := encodeBounded(canvas)
	if err != nil {
		return nil, compositionErr("encode", err)
	}

	logger.Debug(context.Background(), "card", "compose.done",
		slog.Int("caption_len", len(caption)),
		slog.Int("font_size", fontSize),
		slog.Int("lines", len(lines)),
		slog.Int("quality", quality),
		slog.Int("bytes", len(encoded)),
	)
	return encoded, nil
}

// drawCaption fits the caption into the area below the image and renders it
// centered. Returns the chosen font size and the wrapped lines.
func (c *Composer) drawCaption(canvas *image.RGBA, caption string) (int, []string, error) {
	areaTop := baseSize + textMargin
	areaBottom := canvasH - textMargin
	areaHeight := areaBottom - areaTop
	maxLineWidth := canvasW - 2*textMargin

	size, lines, face, err := c.fitCaption(caption, maxLineWidth, areaHeight)
	if err != nil {
		return 0, nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	blockHeight := lineHeight * len(lines)

	// Vertical centering; a block past the floor size may overflow the area.
	y := areaTop + (areaHeight-blockHeight)/2 + metrics.Ascent.Ceil()

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(captionColor),
		Face: face,
	}
	for _, line := range lines {
		width := drawer.MeasureString(line).Ceil()
		x := (canvasW - width) / 2
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(line)
		y += lineHeight
	}
	return size, lines, nil
}

// fitCaption walks font sizes downward until the wrapped block fits the
// allotted height, stopping at the floor regardless. The returned face must
// be closed by the caller.
func (c *Composer) fitCaption(caption string, maxLineWidth, maxHeight int) (int, []string, font.Face, error) {
	for size := maxFontSize; ; size -= fontStep {
		face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return 0, nil, nil, fmt.Errorf("build face at %dpt: %w", size, err)
		}

		lines := wrapWords(caption, maxLineWidth, face)
		blockHeight := face.Metrics().Height.Ceil() * len(lines)
		if blockHeight <= maxHeight || size <= minFontSize {
			return size, lines, face, nil
		}
		face.Close()

		if size-fontStep < minFontSize {
			size = minFontSize + fontStep
		}
	}
}

// wrapWords greedily wraps caption into lines no wider than maxWidth.
// Words are never split; the first word of a line always stays on it even
// when it alone overflows.
func wrapWords(caption string, maxWidth int, face font.Face) []string {
	words := splitWords(caption)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

// drawBorder paints the accent frame last so nothing overdraws it.
func drawBorder(canvas *image.RGBA) {
	b := canvas.Bounds()
	accent := image.NewUniform(accentColor)
	// top, bottom, left, right strips
	draw.Draw(canvas, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+borderWidth), accent, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Max.Y-borderWidth, b.Max.X, b.Max.Y), accent, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Min.Y, b.Min.X+borderWidth, b.Max.Y), accent, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Max.X-borderWidth, b.Min.Y, b.Max.X, b.Max.Y), accent, image.Point{}, draw.Src)
}

// encodeBounded lowers JPEG quality stepwise until the output fits the byte
// ceiling or the quality floor is reached. The floor result is returned even
// when it still exceeds the ceiling.
func encodeBounded(img image.Image) ([]byte, int, error) {
	var buf bytes.Buffer
	for quality := startQuality; ; quality -= qualityStep {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, 0, err
		}
		if buf.Len() <= maxEncodedBytes || quality <= minQuality {
			return append([]byte(nil), buf.Bytes()...), quality, nil
		}
		if quality-qualityStep < minQuality {
			quality = minQuality + qualityStep
		}
	}
}
