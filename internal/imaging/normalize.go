package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Role selects how a source image is fitted into the target frame.
type Role int

const (
	// RoleSubject scales to cover the frame and center-crops the overflow.
	RoleSubject Role = iota
	// RoleGarment scales to fit inside the frame and pads with white.
	RoleGarment
)

func (r Role) String() string {
	switch r {
	case RoleSubject:
		return "subject"
	case RoleGarment:
		return "garment"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

var errEmptyImage = errors.New("image data is empty")

// DecodeError reports bytes that could not be read as a supported image.
type DecodeError struct {
	Role Role
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s image: %v", e.Role, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads jpeg, png, gif or webp bytes.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// DetectMIME sniffs the encoded format from the image header.
func DetectMIME(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errEmptyImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	switch format {
	case "jpeg", "png", "gif", "webp":
		return "image/" + format, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// ExtensionFor maps an image MIME type to a file extension without the dot.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize decodes data and returns an opaque width x height image fitted
// according to role. data is not modified.
func Normalize(data []byte, role Role, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	src, _, err := Decode(data)
	if err != nil {
		return nil, &DecodeError{Role: role, Err: err}
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil, &DecodeError{Role: role, Err: errEmptyImage}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	switch role {
	case RoleSubject:
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(sb, width, height), draw.Over, nil)
	case RoleGarment:
		draw.CatmullRom.Scale(dst, fitRect(sb, width, height), src, sb, draw.Over, nil)
	default:
		return nil, fmt.Errorf("unknown role %v", role)
	}

	return dst, nil
}

// coverRect is the centered region of src with the target aspect ratio.
func coverRect(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	// Compare sw/sh against width/height without floats.
	if sw*height > sh*width {
		cw := sh * width / height
		if cw < 1 {
			cw = 1
		}
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := sw * height / width
	if ch < 1 {
		ch = 1
	}
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}

// fitRect is the centered destination region that holds src scaled to fit.
func fitRect(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw*height > sh*width {
		h := sh * width / sw
		if h < 1 {
			h = 1
		}
		y0 := (height - h) / 2
		return image.Rect(0, y0, width, y0+h)
	}
	w := sw * height / sh
	if w < 1 {
		w = 1
	}
	x0 := (width - w) / 2
	return image.Rect(x0, 0, x0+w, height)
}
