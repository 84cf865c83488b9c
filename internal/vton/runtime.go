package vton

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"virtual-tryon-backend/internal/imaging"
)

// ModelSpec names the weights the runtime should load.
type ModelSpec struct {
	BaseModel      string `json:"base_model"`
	AdapterModel   string `json:"adapter_model"`
	AdapterVersion string `json:"adapter_version"`
	MixedPrecision string `json:"mixed_precision"`
	AllowTF32      bool   `json:"allow_tf32"`
}

type InpaintRequest struct {
	Image     image.Image
	Condition image.Image
	Mask      *image.Gray
	Steps     int
	Guidance  float64
	// Seed is nil for non-deterministic sampling.
	Seed *int64
}

// Model is a loaded inference handle.
type Model interface {
	BodyParser
	Inpaint(ctx context.Context, req InpaintRequest) (image.Image, error)
}

// Runtime loads inference models. Loading is expensive and happens once per
// process.
type Runtime interface {
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}

// HTTPRuntime talks to the model server that owns the GPU.
type HTTPRuntime struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRuntime(baseURL string, timeout time.Duration) *HTTPRuntime {
	return &HTTPRuntime{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type loadResponse struct {
	ModelID string `json:"model_id"`
}

type parseRequest struct {
	ModelID string `json:"model_id"`
	Image   string `json:"image"`
}

type parseResponse struct {
	DensePose string `json:"densepose"`
	Parsing   string `json:"schp"`
}

type inpaintRequest struct {
	ModelID   string  `json:"model_id"`
	Image     string  `json:"image"`
	Condition string  `json:"condition"`
	Mask      string  `json:"mask"`
	Steps     int     `json:"steps"`
	Guidance  float64 `json:"guidance"`
	Seed      *int64  `json:"seed,omitempty"`
}

type inpaintResponse struct {
	Image string `json:"image"`
}

func (r *HTTPRuntime) Load(ctx context.Context, spec ModelSpec) (Model, error) {
	var resp loadResponse
	if err := r.post(ctx, "/v1/load", spec, &resp); err != nil {
		return nil, err
	}
	if resp.ModelID == "" {
		return nil, fmt.Errorf("model server returned no model id")
	}
	return &httpModel{runtime: r, id: resp.ModelID}, nil
}

type httpModel struct {
	runtime *HTTPRuntime
	id      string
}

func (m *httpModel) Parse(ctx context.Context, subject image.Image) (*LabelMaps, error) {
	img, err := encodeImage(subject)
	if err != nil {
		return nil, err
	}

	var resp parseResponse
	if err := m.runtime.post(ctx, "/v1/parse", parseRequest{ModelID: m.id, Image: img}, &resp); err != nil {
		return nil, err
	}

	dp, err := decodeLabelMap(resp.DensePose)
	if err != nil {
		return nil, fmt.Errorf("densepose map: %w", err)
	}
	sp, err := decodeLabelMap(resp.Parsing)
	if err != nil {
		return nil, fmt.Errorf("parsing map: %w", err)
	}
	return &LabelMaps{DensePose: dp, Parsing: sp}, nil
}

func (m *httpModel) Inpaint(ctx context.Context, req InpaintRequest) (image.Image, error) {
	body := inpaintRequest{
		ModelID:  m.id,
		Steps:    req.Steps,
		Guidance: req.Guidance,
		Seed:     req.Seed,
	}
	var err error
	if body.Image, err = encodeImage(req.Image); err != nil {
		return nil, err
	}
	if body.Condition, err = encodeImage(req.Condition); err != nil {
		return nil, err
	}
	if body.Mask, err = encodeImage(req.Mask); err != nil {
		return nil, err
	}

	var resp inpaintResponse
	if err := m.runtime.post(ctx, "/v1/inpaint", body, &resp); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result payload: %w", err)
	}
	out, _, err := imaging.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result image: %w", err)
	}
	return out, nil
}

func (r *HTTPRuntime) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("model server %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func encodeImage(img image.Image) (string, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// decodeLabelMap reads a PNG label map. Labels are carried in the gray value,
// or in the red channel when the server sent a colour PNG.
func decodeLabelMap(b64 string) (*image.Gray, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(raw)
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}

	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Pix[y*g.Stride+x] = uint8(r >> 8)
		}
	}
	return g, nil
}
