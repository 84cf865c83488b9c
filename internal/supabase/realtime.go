package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"virtual-tryon-backend/internal/models"
)

const EventTryonCompleted = "tryon_completed"

// RealtimeClient sends broadcast messages through the Realtime REST
// endpoint. The Go SDK has no realtime publisher.
type RealtimeClient struct {
	endpoint   string
	key        string
	httpClient *http.Client
}

func NewRealtimeClient(c *Client) *RealtimeClient {
	return newRealtimeClient(c.URL, c.key)
}

func newRealtimeClient(baseURL, key string) *RealtimeClient {
	return &RealtimeClient{
		endpoint:   baseURL + "/realtime/v1/api/broadcast",
		key:        key,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type broadcastMessage struct {
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

type broadcastRequest struct {
	Messages []broadcastMessage `json:"messages"`
}

func (r *RealtimeClient) PublishEvent(ctx context.Context, channel, event string, payload map[string]any) error {
	body, err := json.Marshal(broadcastRequest{Messages: []broadcastMessage{{
		Topic:   channel,
		Event:   event,
		Payload: payload,
	}}})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", r.key)
	req.Header.Set("Authorization", "Bearer "+r.key)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("broadcast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("broadcast returned status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func UserChannel(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// PublishResult tells the owner's clients that a new result is ready.
func (r *RealtimeClient) PublishResult(ctx context.Context, record *models.ResultRecord) error {
	return r.PublishEvent(ctx, UserChannel(record.UserID), EventTryonCompleted, TryonCompletedPayload(record))
}

func TryonCompletedPayload(record *models.ResultRecord) map[string]any {
	return map[string]any{
		"result_id":       record.ID,
		"person_photo_id": record.PersonPhotoID,
		"cloth_photo_id":  record.GarmentPhotoID,
		"filename":        record.Filename,
		"result_url":      models.ResultURL(record.Filename),
		"status":          "completed",
	}
}
