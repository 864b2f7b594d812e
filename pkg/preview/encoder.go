// Package preview encodes images into a caller-specified byte budget,
// for embedding as data URIs in size-limited responses.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// dataURIPrefix is the fixed allowance counted against the character
// budget on top of the base64 payload itself.
const dataURIPrefix = "data:image/jpeg;base64,"

// Encoded is a finished preview. Never mutated once produced.
type Encoded struct {
	B64      string `json:"b64"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	ByteLen  int    `json:"byte_len"`
	CharLen  int    `json:"char_len"`

	// Raw is the encoded image bytes backing B64.
	Raw []byte `json:"-"`
}

// DataURI returns the embeddable form.
func (e *Encoded) DataURI() string {
	return dataURIPrefix + e.B64
}

// Options configure one encode.
type Options struct {
	// MaxDim bounds the longer edge. Default 512.
	MaxDim int

	// MaxChars is the character budget: base64 length plus the data
	// URI prefix must fit. Default 100000.
	MaxChars int

	// Quality is the starting JPEG quality. Default 70.
	Quality int
}

func (o *Options) defaults() {
	if o.MaxDim <= 0 {
		o.MaxDim = 512
	}
	if o.MaxChars <= 0 {
		o.MaxChars = 100_000
	}
	if o.Quality <= 0 {
		o.Quality = 70
	}
}

// BudgetError reports that no size/quality combination fit the budget.
// MinDim and MinQuality are the smallest combination attempted, so
// callers can explain the refusal.
type BudgetError struct {
	Budget     int
	CharLen    int
	MinDim     int
	MinQuality int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("preview exceeds budget of %d chars even at %dpx quality %d (%d chars)",
		e.Budget, e.MinDim, e.MinQuality, e.CharLen)
}

// The descending ladder tried before giving up: each target dimension
// at the starting quality, then 55, then 40.
var (
	ladderDims      = []int{0, 384, 256} // 0 is replaced by the requested MaxDim
	ladderQualities = []int{0, 55, 40}   // 0 is replaced by the requested Quality
	lastResortDim   = 256
	lastResortQ     = 35
)

// Encode fits src into the budget, walking the dimension/quality
// ladder and re-encoding at each step. Fails with *BudgetError rather
// than silently truncating.
func Encode(src []byte, opts Options) (*Encoded, error) {
	opts.defaults()

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode preview source: %w", err)
	}
	flat := flatten(img)

	for _, dim := range ladderSteps(ladderDims, opts.MaxDim) {
		resized := scaleDown(flat, dim)
		for _, q := range ladderSteps(ladderQualities, opts.Quality) {
			enc, err := encodeJPEG(resized, q)
			if err != nil {
				return nil, err
			}
			if enc.CharLen+len(dataURIPrefix) <= opts.MaxChars {
				return enc, nil
			}
		}
	}

	// One maximally-compressed pass at the smallest dimension.
	resized := scaleDown(flat, lastResortDim)
	enc, err := encodeJPEG(resized, lastResortQ)
	if err != nil {
		return nil, err
	}
	if enc.CharLen+len(dataURIPrefix) <= opts.MaxChars {
		return enc, nil
	}
	return nil, &BudgetError{
		Budget:     opts.MaxChars,
		CharLen:    enc.CharLen + len(dataURIPrefix),
		MinDim:     lastResortDim,
		MinQuality: lastResortQ,
	}
}

// ladderSteps substitutes the requested value for the leading zero and
// drops steps larger than it, keeping the walk strictly descending.
func ladderSteps(steps []int, requested int) []int {
	out := make([]int, 0, len(steps))
	for _, s := range steps {
		if s == 0 {
			s = requested
		}
		if s > requested {
			continue
		}
		out = append(out, s)
	}
	return out
}

// flatten composites the image onto a white background, dropping any
// alpha channel before JPEG encoding.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, stddraw.Src)
	stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Over)
	return dst
}

// scaleDown resizes so the longer edge is at most maxDim. Images
// already within bounds are returned unchanged.
func scaleDown(img *image.RGBA, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longest)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func encodeJPEG(img *image.RGBA, quality int) (*Encoded, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	raw := buf.Bytes()
	b64 := base64.StdEncoding.EncodeToString(raw)

	b := img.Bounds()
	return &Encoded{
		B64:      b64,
		MimeType: "image/jpeg",
		Width:    b.Dx(),
		Height:   b.Dy(),
		ByteLen:  len(raw),
		CharLen:  len(b64),
		Raw:      raw,
	}, nil
}
