package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) * 255 / (w + h)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncode_FitsBudget(t *testing.T) {
	src := gradientPNG(t, 1600, 1200)

	enc, err := Encode(src, Options{})
	require.NoError(t, err)

	assert.LessOrEqual(t, enc.CharLen+len(dataURIPrefix), 100_000)
	assert.LessOrEqual(t, enc.Width, 512)
	assert.LessOrEqual(t, enc.Height, 512)
	assert.Equal(t, "image/jpeg", enc.MimeType)
	assert.Equal(t, 512, enc.Width, "longer edge lands exactly on the bound")
	assert.Equal(t, 384, enc.Height, "aspect ratio is preserved")
}

func TestEncode_SmallImageNotUpscaled(t *testing.T) {
	src := gradientPNG(t, 100, 80)

	enc, err := Encode(src, Options{})
	require.NoError(t, err)
	assert.Equal(t, 100, enc.Width)
	assert.Equal(t, 80, enc.Height)
}

func TestEncode_TightBudgetWalksLadder(t *testing.T) {
	src := gradientPNG(t, 1600, 1200)

	enc, err := Encode(src, Options{MaxChars: 20_000})
	require.NoError(t, err)
	assert.LessOrEqual(t, enc.CharLen+len(dataURIPrefix), 20_000)
	assert.LessOrEqual(t, enc.Width, 512)
}

func TestEncode_ImpossibleBudget(t *testing.T) {
	src := gradientPNG(t, 1600, 1200)

	_, err := Encode(src, Options{MaxChars: 50})
	var berr *BudgetError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, 50, berr.Budget)
	assert.Equal(t, lastResortDim, berr.MinDim)
	assert.Equal(t, lastResortQ, berr.MinQuality)
	assert.Contains(t, berr.Error(), "exceeds budget")
}

func TestEncode_BadInput(t *testing.T) {
	_, err := Encode([]byte("not an image"), Options{})
	require.Error(t, err)
	var berr *BudgetError
	assert.False(t, errors.As(err, &berr), "decode failure is not a budget failure")
}

func TestEncode_TransparencyFlattened(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	// Fully transparent source; flattening must land on white, which
	// JPEG-encodes to a near-uniform light image.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	enc, err := Encode(buf.Bytes(), Options{})
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(enc.Raw))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(32, 32).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestEncode_DataURI(t *testing.T) {
	src := gradientPNG(t, 64, 64)
	enc, err := Encode(src, Options{})
	require.NoError(t, err)

	uri := enc.DataURI()
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	assert.Equal(t, len(dataURIPrefix)+enc.CharLen, len(uri))
}

func TestLadderSteps(t *testing.T) {
	assert.Equal(t, []int{512, 384, 256}, ladderSteps(ladderDims, 512))
	// A requested dimension below a rung drops that rung.
	assert.Equal(t, []int{300, 256}, ladderSteps(ladderDims, 300))
	assert.Equal(t, []int{200}, ladderSteps(ladderDims, 200))

	assert.Equal(t, []int{70, 55, 40}, ladderSteps(ladderQualities, 70))
	assert.Equal(t, []int{30}, ladderSteps(ladderQualities, 30))
}

func TestCache(t *testing.T) {
	c := NewCache()
	src := gradientPNG(t, 64, 64)

	first, err := c.EncodeCached("k1", src, Options{})
	require.NoError(t, err)
	second, err := c.EncodeCached("k1", src, Options{})
	require.NoError(t, err)
	assert.Same(t, first, second, "hit returns the cached value")
	assert.Equal(t, 1, c.Len())

	// Empty keys bypass the cache entirely.
	c.Put("", first)
	assert.Equal(t, 1, c.Len())
	assert.Nil(t, c.Get(""))
}

func TestCache_EvictsOldest(t *testing.T) {
	c := NewCache()
	enc := &Encoded{B64: "x"}

	for i := 0; i < cacheLimit+5; i++ {
		c.Put(fmt.Sprintf("k%d", i), enc)
	}

	assert.Equal(t, cacheLimit, c.Len())
	assert.Nil(t, c.Get("k0"))
	assert.Nil(t, c.Get("k4"))
	assert.NotNil(t, c.Get("k5"))
	assert.NotNil(t, c.Get(fmt.Sprintf("k%d", cacheLimit+4)))
}

func TestCache_RePutSameKey(t *testing.T) {
	c := NewCache()
	a := &Encoded{B64: "a"}
	b := &Encoded{B64: "b"}

	c.Put("k", a)
	c.Put("k", b)
	assert.Equal(t, 1, c.Len())
	assert.Same(t, b, c.Get("k"))
}
