package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/storage"
	"virtual-tryon-backend/internal/tryon"
	"virtual-tryon-backend/internal/vton"
)

type stubRunner struct {
	errs    []error
	calls   int
	lastReq tryon.Request
}

func (s *stubRunner) Run(_ context.Context, req tryon.Request) (*tryon.Outcome, error) {
	s.calls++
	s.lastReq = req
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return &tryon.Outcome{
		Record: &models.ResultRecord{ID: 99, Filename: "abc_result.png"},
		URL:    models.ResultURL("abc_result.png"),
	}, nil
}

func withUser(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, id)
		c.Next()
	}
}

func newTryonRouter(h *TryonHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/tryon", withUser(7), h.Tryon)
	return router
}

func postTryon(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/v1/tryon", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestTryonHandler_Success(t *testing.T) {
	runner := &stubRunner{}
	h := NewTryonHandler(runner, 2, time.Minute)
	h.sleep = noSleep

	w := postTryon(newTryonRouter(h), `{"person_photo_id": 1, "cloth_photo_id": 11}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TryonResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(99), resp.ResultID)
	assert.Equal(t, "abc_result.png", resp.ResultFilename)
	assert.Equal(t, "/results/image/abc_result.png", resp.ResultURL)
	assert.Equal(t, tryon.Request{UserID: 7, PersonPhotoID: 1, GarmentPhotoID: 11}, runner.lastReq)
}

func TestTryonHandler_InvalidBody(t *testing.T) {
	runner := &stubRunner{}
	h := NewTryonHandler(runner, 2, time.Minute)

	w := postTryon(newTryonRouter(h), `{"person_photo_id": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestTryonHandler_Unauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/tryon", NewTryonHandler(&stubRunner{}, 1, 0).Tryon)

	w := postTryon(router, `{"person_photo_id": 1, "cloth_photo_id": 2}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTryonHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind tryon.Kind
	}{
		{
			name:     "missing photo",
			err:      &tryon.Error{Kind: tryon.KindNotFound, Stage: tryon.StageValidate, Message: "person photo not found"},
			wantCode: http.StatusNotFound,
			wantKind: tryon.KindNotFound,
		},
		{
			name:     "mask failure",
			err:      &tryon.Error{Kind: tryon.KindMaskGeneration, Stage: tryon.StageSynthesize, Message: "could not locate the garment region"},
			wantCode: http.StatusInternalServerError,
			wantKind: tryon.KindMaskGeneration,
		},
		{
			name: "rate limited",
			err: &tryon.Error{
				Kind:  tryon.KindRemoteService,
				Stage: tryon.StageSynthesize,
				Err:   &vton.RemoteServiceError{StatusCode: http.StatusTooManyRequests},
			},
			wantCode: http.StatusTooManyRequests,
			wantKind: tryon.KindRemoteService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTryonHandler(&stubRunner{errs: []error{tt.err, tt.err}}, 2, time.Minute)
			h.sleep = noSleep

			w := postTryon(newTryonRouter(h), `{"person_photo_id": 1, "cloth_photo_id": 2}`)
			assert.Equal(t, tt.wantCode, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.wantKind), resp.Kind)
		})
	}
}

func TestTryonHandler_RetriesTransientFailures(t *testing.T) {
	transient := &tryon.Error{Kind: tryon.KindNoImageReturned, Stage: tryon.StageSynthesize}
	runner := &stubRunner{errs: []error{transient}}

	var waits []time.Duration
	h := NewTryonHandler(runner, 3, time.Minute)
	h.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	w := postTryon(newTryonRouter(h), `{"person_photo_id": 1, "cloth_photo_id": 2}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, runner.calls)
	assert.Equal(t, []time.Duration{time.Second}, waits)
}

func TestTryonHandler_DoesNotRetryPermanentFailures(t *testing.T) {
	permanent := &tryon.Error{Kind: tryon.KindDecode, Stage: tryon.StageSynthesize}
	runner := &stubRunner{errs: []error{permanent, permanent, permanent}}
	h := NewTryonHandler(runner, 3, time.Minute)
	h.sleep = noSleep

	w := postTryon(newTryonRouter(h), `{"person_photo_id": 1, "cloth_photo_id": 2}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, runner.calls)
}

func TestTryonHandler_StopsAfterMaxAttempts(t *testing.T) {
	transient := &tryon.Error{Kind: tryon.KindNoImageReturned, Stage: tryon.StageSynthesize}
	runner := &stubRunner{errs: []error{transient, transient, transient}}
	h := NewTryonHandler(runner, 2, time.Minute)
	h.sleep = noSleep

	w := postTryon(newTryonRouter(h), `{"person_photo_id": 1, "cloth_photo_id": 2}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 2, runner.calls)
}

type stubLister struct {
	records       []models.ResultRecord
	err           error
	limit, offset int
}

func (s *stubLister) ListResults(_ context.Context, _ int64, limit, offset int) ([]models.ResultRecord, error) {
	s.limit, s.offset = limit, offset
	return s.records, s.err
}

type stubFetcher map[string][]byte

func (s stubFetcher) Fetch(_ context.Context, category models.Category, filename string) ([]byte, error) {
	data, ok := s[string(category)+"/"+filename]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func newResultsRouter(h *ResultsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/results", withUser(7), h.List)
	router.GET("/results/image/:filename", h.Image)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestResultsHandler_List(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := &stubLister{records: []models.ResultRecord{
		{ID: 2, UserID: 7, PersonPhotoID: 1, GarmentPhotoID: 11, Filename: "b_result.png", CreatedAt: created},
	}}
	router := newResultsRouter(NewResultsHandler(lister, stubFetcher{}))

	w := get(router, "/api/v1/results")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultResultsLimit, lister.limit)

	var resp models.ResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/results/image/b_result.png", resp.Results[0].ImageURL)
	assert.Equal(t, int64(11), resp.Results[0].ClothPhotoID)

	get(router, "/api/v1/results?limit=500&offset=-3")
	assert.Equal(t, maxResultsLimit, lister.limit)
	assert.Equal(t, 0, lister.offset)
}

func TestResultsHandler_ListError(t *testing.T) {
	router := newResultsRouter(NewResultsHandler(&stubLister{err: errors.New("db down")}, stubFetcher{}))

	w := get(router, "/api/v1/results")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestResultsHandler_Image(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	name := strings.Repeat("a", 32) + "_result.png"
	router := newResultsRouter(NewResultsHandler(&stubLister{}, stubFetcher{"result/" + name: buf.Bytes()}))

	w := get(router, "/results/image/"+name)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, buf.Bytes(), w.Body.Bytes())

	w = get(router, "/results/image/"+strings.Repeat("b", 32)+"_result.png")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(router, "/results/image/p1.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		pinger     Pinger
		wantCode   int
		wantStatus string
	}{
		{"healthy", stubPinger{}, http.StatusOK, "ok"},
		{"database down", stubPinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", NewHealthHandler(tt.pinger, "remote").Health)

			w := get(router, "/health")
			assert.Equal(t, tt.wantCode, w.Code)

			var resp models.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "remote", resp.Backend)
		})
	}
}
