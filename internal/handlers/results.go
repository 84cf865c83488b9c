package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"virtual-tryon-backend/internal/imaging"
	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/storage"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

var resultFilenamePattern = regexp.MustCompile(`^[0-9a-f]{32}_result\.(png|jpg|webp|gif)$`)

type ResultLister interface {
	ListResults(ctx context.Context, userID int64, limit, offset int) ([]models.ResultRecord, error)
}

type ObjectFetcher interface {
	Fetch(ctx context.Context, category models.Category, filename string) ([]byte, error)
}

type ResultsHandler struct {
	lister ResultLister
	store  ObjectFetcher
}

func NewResultsHandler(lister ResultLister, store ObjectFetcher) *ResultsHandler {
	return &ResultsHandler{lister: lister, store: store}
}

// List godoc
// @Summary     List try-on results
// @Description Returns the caller's try-on results, newest first
// @Tags        results
// @Produce     json
// @Security    Bearer
// @Param       limit  query int false "Page size (max 100)"
// @Param       offset query int false "Offset"
// @Success     200 {object} models.ResultsResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /results [get]
func (h *ResultsHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	var q models.ListResultsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid query", Message: err.Error()})
		return
	}
	if q.Limit <= 0 {
		q.Limit = defaultResultsLimit
	}
	if q.Limit > maxResultsLimit {
		q.Limit = maxResultsLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	records, err := h.lister.ListResults(c.Request.Context(), userID, q.Limit, q.Offset)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to list results")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list results"})
		return
	}

	resp := models.ResultsResponse{Results: make([]models.ResultResponse, 0, len(records))}
	for _, r := range records {
		resp.Results = append(resp.Results, models.ResultResponse{
			ID:            r.ID,
			Filename:      r.Filename,
			PersonPhotoID: r.PersonPhotoID,
			ClothPhotoID:  r.GarmentPhotoID,
			CreatedAt:     r.CreatedAt,
			ImageURL:      models.ResultURL(r.Filename),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Image godoc
// @Summary     Get a result image
// @Description Serves the bytes of a stored try-on result
// @Tags        results
// @Produce     image/png,image/jpeg,image/webp,image/gif
// @Param       filename path string true "Result filename"
// @Success     200 {file} binary
// @Failure     404 {object} models.ErrorResponse
// @Router      /results/image/{filename} [get]
func (h *ResultsHandler) Image(c *gin.Context) {
	filename := c.Param("filename")
	if !resultFilenamePattern.MatchString(filename) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "result not found"})
		return
	}

	data, err := h.store.Fetch(c.Request.Context(), models.CategoryResult, filename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "result not found"})
			return
		}
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("filename", filename).Msg("failed to fetch result image")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load result image"})
		return
	}

	contentType, err := imaging.DetectMIME(data)
	if err != nil {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, contentType, data)
}
