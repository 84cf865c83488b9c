package tryon

import (
	"errors"
	"fmt"
	"net/http"

	"virtual-tryon-backend/internal/imaging"
	"virtual-tryon-backend/internal/vton"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindSourceUnavailable Kind = "source_unavailable"
	KindDecode            Kind = "decode_failed"
	KindMaskGeneration    Kind = "mask_generation_failed"
	KindNoImageReturned   Kind = "no_image_returned"
	KindRemoteService     Kind = "remote_service_failed"
	KindSynthesis         Kind = "synthesis_failed"
	KindInvalidResult     Kind = "invalid_result"
	KindPersistence       Kind = "persistence_failed"
)

type Stage string

const (
	StageValidate       Stage = "validate"
	StageFetch          Stage = "fetch_bytes"
	StageSynthesize     Stage = "synthesize"
	StageValidateResult Stage = "validate_result"
	StagePersist        Stage = "persist"
)

// Error is the only error type Run returns for pipeline failures.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrSourceUnavailable = &Error{Kind: KindSourceUnavailable}
	ErrDecode            = &Error{Kind: KindDecode}
	ErrMaskGeneration    = &Error{Kind: KindMaskGeneration}
	ErrNoImageReturned   = &Error{Kind: KindNoImageReturned}
	ErrRemoteService     = &Error{Kind: KindRemoteService}
	ErrSynthesis         = &Error{Kind: KindSynthesis}
	ErrInvalidResult     = &Error{Kind: KindInvalidResult}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("tryon %s: %s: %v", e.Stage, msg, e.Err)
	}
	return fmt.Sprintf("tryon %s: %s", e.Stage, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether running the same request again may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNoImageReturned || e.Kind == KindRemoteService
}

// Processing reports a failure inside synthesis rather than in lookup,
// storage or bookkeeping.
func (e *Error) Processing() bool {
	switch e.Kind {
	case KindDecode, KindMaskGeneration, KindNoImageReturned, KindRemoteService, KindSynthesis, KindInvalidResult:
		return true
	default:
		return false
	}
}

// UpstreamStatus is the HTTP status the remote model answered with, or 0.
func (e *Error) UpstreamStatus() int {
	var remote *vton.RemoteServiceError
	if errors.As(e.Err, &remote) {
		return remote.StatusCode
	}
	return 0
}

// HTTPStatus is the response code the API uses for this failure.
func (e *Error) HTTPStatus() int {
	switch {
	case e.Kind == KindNotFound:
		return http.StatusNotFound
	case e.Kind == KindRemoteService && e.UpstreamStatus() == http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, stage Stage, msg string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: msg, Err: err}
}

// synthesisError classifies a backend failure.
func synthesisError(err error) *Error {
	var (
		decodeErr *imaging.DecodeError
		maskErr   *vton.MaskError
		noImage   *vton.NoImageError
		remoteErr *vton.RemoteServiceError
	)
	switch {
	case errors.As(err, &decodeErr):
		return newError(KindDecode, StageSynthesize, "source image could not be decoded", err)
	case errors.As(err, &maskErr):
		return newError(KindMaskGeneration, StageSynthesize, "could not locate the garment region", err)
	case errors.As(err, &noImage):
		return newError(KindNoImageReturned, StageSynthesize, "model returned no image", err)
	case errors.As(err, &remoteErr):
		return newError(KindRemoteService, StageSynthesize, "remote model unavailable", err)
	default:
		return newError(KindSynthesis, StageSynthesize, "synthesis failed", err)
	}
}
