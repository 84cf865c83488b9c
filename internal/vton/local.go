package vton

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"virtual-tryon-backend/internal/imaging"
)

// RandomSeed asks the runtime to pick a seed per run.
const RandomSeed int64 = -1

type LocalParams struct {
	Width    int
	Height   int
	Steps    int
	Guidance float64
	// Seed -1 means a fresh random seed per run.
	Seed int64
}

// LocalBackend runs mask-conditioned diffusion inpainting on a model
// server co-located with the GPU.
type LocalBackend struct {
	runtime Runtime
	spec    ModelSpec
	params  LocalParams

	mu    sync.Mutex
	model Model

	// slots bounds in-flight inferences on the device.
	slots chan struct{}
}

func NewLocalBackend(rt Runtime, spec ModelSpec, params LocalParams, maxConcurrent int) *LocalBackend {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &LocalBackend{
		runtime: rt,
		spec:    spec,
		params:  params,
		slots:   make(chan struct{}, maxConcurrent),
	}
}

func (b *LocalBackend) Name() string { return "local" }

// Warmup loads the model ahead of the first request.
func (b *LocalBackend) Warmup(ctx context.Context) error {
	_, err := b.handle(ctx)
	return err
}

// handle returns the loaded model, loading it on first use. A failed load
// leaves the handle unset so a later call can try again.
func (b *LocalBackend) handle(ctx context.Context) (Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model != nil {
		return b.model, nil
	}

	start := time.Now()
	m, err := b.runtime.Load(ctx, b.spec)
	if err != nil {
		return nil, &SynthesisError{Op: "load", Err: err}
	}
	zerolog.Ctx(ctx).Info().
		Str("base_model", b.spec.BaseModel).
		Str("adapter", b.spec.AdapterModel).
		Dur("elapsed", time.Since(start)).
		Msg("diffusion model loaded")

	b.model = m
	return m, nil
}

func (b *LocalBackend) Synthesize(ctx context.Context, in Input) (*Output, error) {
	subject, err := imaging.Normalize(in.Person.Data, imaging.RoleSubject, b.params.Width, b.params.Height)
	if err != nil {
		return nil, err
	}
	garment, err := imaging.Normalize(in.Garment.Data, imaging.RoleGarment, b.params.Width, b.params.Height)
	if err != nil {
		return nil, err
	}

	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type result struct {
		out *Output
		err error
	}
	done := make(chan result, 1)

	// Inference runs detached and holds the slot until it finishes.
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() { <-b.slots }()
		out, err := b.infer(detached, subject, garment, in)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return r.out, r.err
	case <-ctx.Done():
		zerolog.Ctx(ctx).Warn().Msg("caller went away during inference, result will be discarded")
		return nil, ctx.Err()
	}
}

func (b *LocalBackend) infer(ctx context.Context, subject, garment *image.RGBA, in Input) (*Output, error) {
	model, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}

	mask, err := NewMaskGenerator(model).Compute(ctx, subject, in.GarmentType)
	if err != nil {
		return nil, err
	}

	req := InpaintRequest{
		Image:     subject,
		Condition: garment,
		Mask:      mask,
		Steps:     b.params.Steps,
		Guidance:  b.params.Guidance,
	}
	if b.params.Seed != RandomSeed {
		seed := b.params.Seed
		req.Seed = &seed
	}

	start := time.Now()
	img, err := model.Inpaint(ctx, req)
	if err != nil {
		return nil, &SynthesisError{Op: "inpaint", Err: err}
	}
	zerolog.Ctx(ctx).Debug().
		Int("steps", req.Steps).
		Dur("elapsed", time.Since(start)).
		Msg("inpainting finished")

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, &SynthesisError{Op: "encode", Err: err}
	}
	return &Output{Data: data, MIMEType: "image/png"}, nil
}
