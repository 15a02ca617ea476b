package card

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

func testBaseImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testFace(t *testing.T, size float64) font.Face {
	t.Helper()
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{Size: size, DPI: 72})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { face.Close() })
	return face
}

func TestComposeOutputFitsCeiling(t *testing.T) {
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Compose(testBaseImage(t, 640, 640), "Season's Greetings and best wishes for a prosperous and successful New Year.")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) > maxEncodedBytes {
		t.Errorf("output %d bytes exceeds ceiling %d", len(out), maxEncodedBytes)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a decodable jpeg: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != canvasW || b.Dy() != canvasH {
		t.Errorf("canvas = %dx%d, want %dx%d", b.Dx(), b.Dy(), canvasW, canvasH)
	}
}

func TestComposeEmptyCaption(t *testing.T) {
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Compose(testBaseImage(t, 320, 200), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 || len(out) > maxEncodedBytes {
		t.Errorf("unexpected output size %d", len(out))
	}
}

func TestComposeBorderDrawnLast(t *testing.T) {
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Compose(testBaseImage(t, 400, 400), "Happy New Year")
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	// Corner pixel must be close to the accent gold, not the base image.
	r, g, b, _ := img.At(2, 2).RGBA()
	if !near(uint8(r>>8), accentColor.R) || !near(uint8(g>>8), accentColor.G) || !near(uint8(b>>8), accentColor.B) {
		t.Errorf("corner pixel = (%d,%d,%d), want accent %v", r>>8, g>>8, b>>8, accentColor)
	}
}

func near(got, want uint8) bool {
	d := int(got) - int(want)
	if d < 0 {
		d = -d
	}
	return d <= 24 // jpeg artifacts
}

func TestComposeDecodeFailure(t *testing.T) {
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Compose([]byte("definitely not an image"), "hi")
	var compErr *CompositionError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompositionError, got %v", err)
	}
	if compErr.Stage != "decode" {
		t.Errorf("stage = %q, want decode", compErr.Stage)
	}
}

func TestWrapWordsNeverSplits(t *testing.T) {
	face := testFace(t, 48)
	text := "congratulations on an extraordinarily prosperous year ahead"
	lines := wrapWords(text, 400, face)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %d line(s)", len(lines))
	}
	rejoined := strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
	if rejoined != text {
		t.Errorf("wrap altered words: %q", rejoined)
	}
}

func TestWrapWordsIdempotent(t *testing.T) {
	face := testFace(t, 40)
	text := "a warm and heartfelt greeting to every colleague partner and friend this season"
	first := wrapWords(text, 500, face)
	second := wrapWords(strings.Join(first, " "), 500, face)
	if len(first) != len(second) {
		t.Fatalf("line counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("line %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestWrapWordsLongWordOverflows(t *testing.T) {
	face := testFace(t, 48)
	lines := wrapWords("supercalifragilisticexpialidocious", 30, face)
	if len(lines) != 1 || lines[0] != "supercalifragilisticexpialidocious" {
		t.Errorf("long word must stay on one line, got %v", lines)
	}
}

func TestFitCaptionMonotonic(t *testing.T) {
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	caption := "Wishing you a bright, prosperous, and truly remarkable New Year filled with success"
	prev := maxFontSize + 1
	for _, height := range []int{760, 500, 300, 150, 60} {
		size, _, face, err := c.fitCaption(caption, canvasW-2*textMargin, height)
		if err != nil {
			t.Fatal(err)
		}
		face.Close()
		if size > prev {
			t.Errorf("height %d: size %d increased from %d", height, size, prev)
		}
		if size < minFontSize {
			t.Errorf("height %d: size %d below floor", height, size)
		}
		prev = size
	}
}

func TestFitCaptionFloorUsedWhenNothingFits(t *testing.T) {
	c, err := NewComposer()
	if err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("prosperity felicity serenity ", 12)
	size, lines, face, err := c.fitCaption(long, 300, 40)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()
	if size != minFontSize {
		t.Errorf("size = %d, want floor %d", size, minFontSize)
	}
	if len(lines) == 0 {
		t.Error("no lines produced at floor size")
	}
}

func TestEncodeBoundedQualityFloor(t *testing.T) {
	// Noise compresses poorly; the floor may be hit, and then the ceiling
	// may legitimately be exceeded.
	img := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	seed := uint32(2463534242)
	for i := range img.Pix {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		img.Pix[i] = uint8(seed)
	}
	out, quality, err := encodeBounded(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) > maxEncodedBytes && quality != minQuality {
		t.Errorf("over ceiling (%d bytes) at quality %d != floor %d", len(out), quality, minQuality)
	}
	if quality > startQuality || quality < minQuality {
		t.Errorf("quality %d outside [%d,%d]", quality, minQuality, startQuality)
	}
}
