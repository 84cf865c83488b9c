package vton

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
	"virtual-tryon-backend/internal/imaging"
	"virtual-tryon-backend/internal/models"
)

const DefaultRemoteModel = "gemini-2.5-flash-image"

type RemoteConfig struct {
	APIKey    string
	Model     string
	UseVertex bool
	Project   string
	Location  string
}

// ContentGenerator is the part of *genai.Models the backend needs. Tests
// substitute their own.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// RemoteBackend asks a hosted multimodal model to edit the person photo.
type RemoteBackend struct {
	models ContentGenerator
	model  string
}

func NewRemoteBackend(ctx context.Context, cfg RemoteConfig) (*RemoteBackend, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.UseVertex {
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewRemoteBackendWithGenerator(client.Models, cfg.Model), nil
}

func NewRemoteBackendWithGenerator(gen ContentGenerator, model string) *RemoteBackend {
	if model == "" {
		model = DefaultRemoteModel
	}
	return &RemoteBackend{models: gen, model: model}
}

func (b *RemoteBackend) Name() string { return "remote" }

func tryonPrompt(gt models.GarmentType) string {
	return fmt.Sprintf(
		"Please edit the person image to wear the cloth image. The cloth is a %s type. Generate only the image.",
		gt,
	)
}

func (b *RemoteBackend) Synthesize(ctx context.Context, in Input) (*Output, error) {
	personPart, err := inlineImagePart(in.Person.Data, imaging.RoleSubject)
	if err != nil {
		return nil, err
	}
	garmentPart, err := inlineImagePart(in.Garment.Data, imaging.RoleGarment)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(tryonPrompt(in.GarmentType)),
		personPart,
		garmentPart,
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	log := zerolog.Ctx(ctx)
	start := time.Now()
	resp, err := b.models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, remoteError(err)
	}

	out, noImage := firstImage(resp)
	log.Debug().
		Str("model", b.model).
		Dur("elapsed", time.Since(start)).
		Bool("image_returned", out != nil).
		Msg("remote generation finished")
	if out == nil {
		return nil, noImage
	}
	return out, nil
}

// inlineImagePart sends the bytes with their real MIME type. GIF is not
// accepted by the API and is transcoded to PNG first.
func inlineImagePart(data []byte, role imaging.Role) (*genai.Part, error) {
	mimeType, err := imaging.DetectMIME(data)
	if err != nil {
		return nil, &imaging.DecodeError{Role: role, Err: err}
	}

	if mimeType == "image/gif" {
		img, _, err := imaging.Decode(data)
		if err != nil {
			return nil, &imaging.DecodeError{Role: role, Err: err}
		}
		if data, err = imaging.EncodePNG(img); err != nil {
			return nil, &imaging.DecodeError{Role: role, Err: err}
		}
		mimeType = "image/png"
	}

	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	}, nil
}

// firstImage walks candidates and parts in order and returns the first
// inline image payload.
func firstImage(resp *genai.GenerateContentResponse) (*Output, *NoImageError) {
	noImage := &NoImageError{}
	if resp == nil {
		return nil, noImage
	}

	var text []string
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		if noImage.FinishReason == "" && cand.FinishReason != "" {
			noImage.FinishReason = string(cand.FinishReason)
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				text = append(text, part.Text)
			}
			blob := part.InlineData
			if blob == nil || len(blob.Data) == 0 {
				continue
			}
			if blob.MIMEType != "" && !strings.HasPrefix(blob.MIMEType, "image/") {
				continue
			}
			mimeType := blob.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &Output{Data: blob.Data, MIMEType: mimeType}, nil
		}
	}

	noImage.Text = strings.Join(text, "\n")
	return nil, noImage
}

func remoteError(err error) *RemoteServiceError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteServiceError{StatusCode: apiErr.Code, Status: apiErr.Status, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &RemoteServiceError{StatusCode: apiErrPtr.Code, Status: apiErrPtr.Status, Err: err}
	}
	return &RemoteServiceError{Err: err}
}
