package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func assertColorNear(t *testing.T, want color.RGBA, got color.Color) {
	t.Helper()
	r, g, b, a := got.RGBA()
	assert.InDelta(t, float64(want.R), float64(r>>8), 2, "red channel")
	assert.InDelta(t, float64(want.G), float64(g>>8), 2, "green channel")
	assert.InDelta(t, float64(want.B), float64(b>>8), 2, "blue channel")
	assert.Equal(t, uint32(0xffff), a, "alpha")
}

func TestNormalize_ExactDimensions(t *testing.T) {
	sources := map[string]image.Image{
		"wide":   solid(400, 120, green),
		"tall":   solid(90, 500, green),
		"square": solid(64, 64, green),
		"tiny":   solid(1, 1, green),
	}

	for name, src := range sources {
		data := pngBytes(t, src)
		for _, role := range []Role{RoleSubject, RoleGarment} {
			t.Run(name+"/"+role.String(), func(t *testing.T) {
				out, err := Normalize(data, role, 768, 1024)
				require.NoError(t, err)
				assert.Equal(t, 768, out.Bounds().Dx())
				assert.Equal(t, 1024, out.Bounds().Dy())
			})
		}
	}
}

func TestNormalize_SubjectCenterCrops(t *testing.T) {
	// Left half red, right half blue; cropping to a square keeps the middle.
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if x < 100 {
				src.SetRGBA(x, y, red)
			} else {
				src.SetRGBA(x, y, blue)
			}
		}
	}

	out, err := Normalize(pngBytes(t, src), RoleSubject, 100, 100)
	require.NoError(t, err)

	assertColorNear(t, red, out.At(10, 50))
	assertColorNear(t, blue, out.At(90, 50))
	// No padding anywhere on a subject.
	assertColorNear(t, red, out.At(0, 0))
	assertColorNear(t, blue, out.At(99, 99))
}

func TestNormalize_GarmentPadsWithWhite(t *testing.T) {
	out, err := Normalize(pngBytes(t, solid(200, 100, green)), RoleGarment, 100, 100)
	require.NoError(t, err)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	assertColorNear(t, white, out.At(50, 5))
	assertColorNear(t, white, out.At(50, 95))
	assertColorNear(t, green, out.At(50, 50))
	assertColorNear(t, green, out.At(2, 50))
}

func TestNormalize_TransparentPixelsBecomeOpaque(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	out, err := Normalize(pngBytes(t, src), RoleGarment, 20, 20)
	require.NoError(t, err)

	assertColorNear(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.At(10, 10))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	data := pngBytes(t, solid(30, 40, red))
	orig := append([]byte(nil), data...)

	_, err := Normalize(data, RoleSubject, 16, 16)
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func TestNormalize_DecodeErrors(t *testing.T) {
	valid := pngBytes(t, solid(10, 10, red))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)/2]},
		{"not an image", []byte("definitely not pixels")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.data, RoleGarment, 10, 10)
			assert.Nil(t, out)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "got %v", err)
			assert.Equal(t, RoleGarment, decodeErr.Role)
		})
	}
}

func TestDetectMIME(t *testing.T) {
	img := solid(8, 8, blue)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))

	var gf bytes.Buffer
	require.NoError(t, gif.Encode(&gf, img, nil))

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngBytes(t, img), "image/png"},
		{"jpeg", jpg.Bytes(), "image/jpeg"},
		{"gif", gf.Bytes(), "image/gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectMIME(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectMIME([]byte{0x00, 0x01})
	assert.Error(t, err)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "png", ExtensionFor("image/png"))
	assert.Equal(t, "jpg", ExtensionFor("image/jpeg"))
	assert.Equal(t, "webp", ExtensionFor("image/webp"))
	assert.Equal(t, "png", ExtensionFor(""))
}
