package vton

import "fmt"

// MaskError means no usable replacement region could be derived for the
// subject. It is never papered over with a full-frame mask.
type MaskError struct {
	Reason string
	Err    error
}

func (e *MaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mask generation failed: %s: %v", e.Reason, e.Err)
	}
	return "mask generation failed: " + e.Reason
}

func (e *MaskError) Unwrap() error { return e.Err }

// SynthesisError covers model load, inference and output encoding failures.
type SynthesisError struct {
	Op  string
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis %s failed: %v", e.Op, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// NoImageError is returned when the remote model answered without any
// image part. Text holds whatever the model said instead.
type NoImageError struct {
	Text         string
	FinishReason string
}

func (e *NoImageError) Error() string {
	msg := "model response contained no image"
	if e.FinishReason != "" {
		msg += " (finish reason " + e.FinishReason + ")"
	}
	return msg
}

// RemoteServiceError wraps transport, auth and quota failures from the
// hosted model. StatusCode is 0 when no HTTP response was received.
type RemoteServiceError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote model call failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote model call failed: %v", e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }
