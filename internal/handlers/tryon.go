package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/tryon"
)

// TryonRunner runs one try-on request end to end.
type TryonRunner interface {
	Run(ctx context.Context, req tryon.Request) (*tryon.Outcome, error)
}

type TryonHandler struct {
	runner      TryonRunner
	maxAttempts int
	timeout     time.Duration
	sleep       func(context.Context, time.Duration) error
}

func NewTryonHandler(runner TryonRunner, maxAttempts int, timeout time.Duration) *TryonHandler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TryonHandler{
		runner:      runner,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		sleep:       sleepContext,
	}
}

// Tryon godoc
// @Summary     Run a virtual try-on
// @Description Dresses the caller's person photo in the given cloth photo and stores the result.
// @Tags        tryon
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.TryonRequest true "Photo ids"
// @Success     200 {object} models.TryonResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /tryon [post]
func (h *TryonHandler) Tryon(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	var req models.TryonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	outcome, err := h.runWithRetry(ctx, tryon.Request{
		UserID:         userID,
		PersonPhotoID:  req.PersonPhotoID,
		GarmentPhotoID: req.ClothPhotoID,
	})
	if err != nil {
		writeTryonError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TryonResponse{
		Message:        "try-on completed",
		ResultID:       outcome.Record.ID,
		ResultFilename: outcome.Record.Filename,
		ResultURL:      outcome.URL,
	})
}

// runWithRetry repeats the run only for failures that may succeed on a second
// attempt, backing off 1s, 2s, 4s between attempts.
func (h *TryonHandler) runWithRetry(ctx context.Context, req tryon.Request) (*tryon.Outcome, error) {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < h.maxAttempts; i++ {
		outcome, err := h.runner.Run(ctx, req)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		var te *tryon.Error
		if !errors.As(err, &te) || !te.Retryable() || i == h.maxAttempts-1 {
			break
		}

		wait := backoffs[len(backoffs)-1]
		if i < len(backoffs) {
			wait = backoffs[i]
		}
		zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", i+1).Dur("backoff", wait).Msg("retrying try-on")
		if err := h.sleep(ctx, wait); err != nil {
			break
		}
	}
	return nil, lastErr
}

func writeTryonError(c *gin.Context, err error) {
	var te *tryon.Error
	if !errors.As(err, &te) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "try-on failed", Message: err.Error()})
		return
	}

	resp := models.ErrorResponse{Error: te.Message, Kind: string(te.Kind)}
	if te.Processing() {
		resp.Error = "virtual try-on processing failed"
		resp.Message = te.Message
	}
	c.JSON(te.HTTPStatus(), resp)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
