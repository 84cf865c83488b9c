package supabase

import (
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"virtual-tryon-backend/internal/config"
)

// Client bundles the Supabase SDK client with the project URL and service
// key that the REST-only features (realtime broadcast) need.
type Client struct {
	Supabase *supabase.Client
	URL      string
	key      string
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	url := strings.TrimRight(cfg.SupabaseURL, "/")

	client, err := supabase.NewClient(url, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		URL:      url,
		key:      cfg.SupabaseServiceKey,
	}, nil
}
