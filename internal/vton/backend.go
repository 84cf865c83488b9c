package vton

import (
	"context"
	"fmt"

	"virtual-tryon-backend/internal/config"
	"virtual-tryon-backend/internal/models"
)

// Source is one encoded input image. MIMEType may be empty; backends sniff
// the real format themselves.
type Source struct {
	Data     []byte
	MIMEType string
}

type Input struct {
	Person      Source
	Garment     Source
	GarmentType models.GarmentType
}

type Output struct {
	Data     []byte
	MIMEType string
}

// Backend turns a person photo and a garment photo into a composite.
type Backend interface {
	Name() string
	Synthesize(ctx context.Context, in Input) (*Output, error)
}

// NewBackend builds the backend selected by VTON_BACKEND. It is called once
// at startup.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.VTONBackend {
	case config.BackendLocal:
		rt := NewHTTPRuntime(cfg.VTONRuntimeURL, cfg.VTONRuntimeTimeout)
		spec := ModelSpec{
			BaseModel:      cfg.VTONBaseModel,
			AdapterModel:   cfg.VTONAdapterModel,
			AdapterVersion: cfg.VTONAdapterVersion,
			MixedPrecision: cfg.VTONMixedPrecision,
			AllowTF32:      cfg.VTONAllowTF32,
		}
		params := LocalParams{
			Width:    cfg.VTONWidth,
			Height:   cfg.VTONHeight,
			Steps:    cfg.VTONSteps,
			Guidance: cfg.VTONGuidance,
			Seed:     cfg.VTONSeed,
		}
		return NewLocalBackend(rt, spec, params, cfg.VTONMaxConcurrent), nil
	case config.BackendRemote:
		return NewRemoteBackend(ctx, RemoteConfig{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			UseVertex: cfg.GenAIUseVertex,
			Project:   cfg.GoogleCloudProject,
			Location:  cfg.GoogleCloudLocation,
		})
	default:
		return nil, fmt.Errorf("unknown synthesis backend %q", cfg.VTONBackend)
	}
}
