package tryon

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"virtual-tryon-backend/internal/imaging"
	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/storage"
	"virtual-tryon-backend/internal/vton"
)

// PhotoLookup resolves photo ids to stored photos. Person photos are private
// to their owner; garment photos are shared.
type PhotoLookup interface {
	PersonPhoto(ctx context.Context, photoID, ownerID int64) (*models.Photo, error)
	GarmentPhoto(ctx context.Context, photoID int64) (*models.Photo, error)
}

type ByteStore interface {
	Fetch(ctx context.Context, category models.Category, filename string) ([]byte, error)
	Store(ctx context.Context, category models.Category, filename string, data []byte, mimeType string) error
	Delete(ctx context.Context, category models.Category, filename string) error
}

type ResultLedger interface {
	RecordResult(ctx context.Context, userID, personPhotoID, garmentPhotoID int64, filename string) (*models.ResultRecord, error)
}

// EventPublisher is notified after a result has been persisted.
type EventPublisher interface {
	PublishResult(ctx context.Context, record *models.ResultRecord) error
}

type Request struct {
	UserID         int64
	PersonPhotoID  int64
	GarmentPhotoID int64
}

type Outcome struct {
	Record *models.ResultRecord
	Result *models.SynthesisResult
	URL    string
}

type Service struct {
	photos    PhotoLookup
	store     ByteStore
	backend   vton.Backend
	persister *Persister
	events    EventPublisher
}

func NewService(photos PhotoLookup, store ByteStore, ledger ResultLedger, backend vton.Backend) *Service {
	return &Service{
		photos:    photos,
		store:     store,
		backend:   backend,
		persister: NewPersister(store, ledger),
	}
}

// WithEvents sets the publisher used for completion events.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) Backend() string { return s.backend.Name() }

// Run executes one try-on. Stages run strictly in order and any failure
// stops the run before a result record exists.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	log := zerolog.Ctx(ctx).With().
		Int64("user_id", req.UserID).
		Int64("person_photo_id", req.PersonPhotoID).
		Int64("cloth_photo_id", req.GarmentPhotoID).
		Str("backend", s.backend.Name()).
		Logger()
	ctx = log.WithContext(ctx)
	start := time.Now()

	person, garment, garmentType, err := s.validate(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	log.Debug().Str("stage", string(StageFetch)).Msg("fetching source images")
	personData, err := s.fetch(ctx, person)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	garmentData, err := s.fetch(ctx, garment)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	log.Debug().Str("stage", string(StageSynthesize)).Str("garment_type", string(garmentType)).Msg("running synthesis")
	out, err := s.backend.Synthesize(ctx, vton.Input{
		Person:      vton.Source{Data: personData},
		Garment:     vton.Source{Data: garmentData},
		GarmentType: garmentType,
	})
	if err != nil {
		return nil, s.fail(ctx, synthesisError(err))
	}

	result, err := validateResult(out)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	record, err := s.persister.Save(ctx, req, result)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	log.Info().
		Int64("result_id", record.ID).
		Str("filename", record.Filename).
		Dur("elapsed", time.Since(start)).
		Msg("try-on completed")

	if s.events != nil {
		if err := s.events.PublishResult(ctx, record); err != nil {
			log.Warn().Err(err).Msg("failed to publish try-on event")
		}
	}

	return &Outcome{
		Record: record,
		Result: result,
		URL:    models.ResultURL(record.Filename),
	}, nil
}

func (s *Service) validate(ctx context.Context, req Request) (*models.Photo, *models.Photo, models.GarmentType, error) {
	person, err := s.photos.PersonPhoto(ctx, req.PersonPhotoID, req.UserID)
	if err != nil {
		return nil, nil, "", lookupError(err, "person photo not found")
	}
	garment, err := s.photos.GarmentPhoto(ctx, req.GarmentPhotoID)
	if err != nil {
		return nil, nil, "", lookupError(err, "cloth photo not found")
	}

	gt, err := models.ParseGarmentType(string(garment.GarmentType))
	if err != nil {
		return nil, nil, "", newError(KindSourceUnavailable, StageValidate, "cloth photo has an invalid fitting type", err)
	}
	return person, garment, gt, nil
}

func lookupError(err error, msg string) *Error {
	if errors.Is(err, models.ErrNotFound) {
		return newError(KindNotFound, StageValidate, msg, err)
	}
	return newError(KindSourceUnavailable, StageValidate, "photo lookup failed", err)
}

func (s *Service) fetch(ctx context.Context, photo *models.Photo) ([]byte, error) {
	data, err := s.store.Fetch(ctx, photo.Category, photo.Filename)
	if err != nil {
		// A record without bytes is a data integrity problem, not a user error.
		ev := zerolog.Ctx(ctx).Error().Err(err).
			Int64("photo_id", photo.ID).
			Str("category", string(photo.Category)).
			Str("filename", photo.Filename)
		if errors.Is(err, storage.ErrObjectNotFound) {
			ev.Msg("photo record has no stored image")
		} else {
			ev.Msg("failed to fetch photo bytes")
		}
		return nil, newError(KindSourceUnavailable, StageFetch, "source image unavailable", err)
	}
	return data, nil
}

func validateResult(out *vton.Output) (*models.SynthesisResult, error) {
	if out == nil || len(out.Data) == 0 {
		return nil, newError(KindInvalidResult, StageValidateResult, "synthesis produced no bytes", nil)
	}
	// A header check alone lets truncated payloads through.
	if _, _, err := imaging.Decode(out.Data); err != nil {
		return nil, newError(KindInvalidResult, StageValidateResult, "synthesis output is not a readable image", err)
	}
	mimeType, err := imaging.DetectMIME(out.Data)
	if err != nil {
		return nil, newError(KindInvalidResult, StageValidateResult, "synthesis output is not a readable image", err)
	}
	return &models.SynthesisResult{
		Data:              out.Data,
		MIMEType:          mimeType,
		SuggestedFilename: ResultFilename(mimeType),
	}, nil
}

func (s *Service) fail(ctx context.Context, err error) error {
	var te *Error
	if errors.As(err, &te) {
		ev := zerolog.Ctx(ctx).Warn()
		if te.Kind == KindPersistence || te.Kind == KindSynthesis {
			ev = zerolog.Ctx(ctx).Error()
		}
		ev.Err(te.Err).
			Str("kind", string(te.Kind)).
			Str("stage", string(te.Stage)).
			Msg(te.Message)
	}
	return err
}
