// Package imgbb uploads header images to the ImgBB image host.
package imgbb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lunaticom/campaign-builder/internal/apperr"
)

// DefaultUploadURL is the public ImgBB upload endpoint
const DefaultUploadURL = "https://api.imgbb.com/1/upload"

// maxResponseBytes caps how much of an upstream reply is read
const maxResponseBytes = 1 << 20

// Upload is the public location of an uploaded image
type Upload struct {
	URL        string `json:"url"`
	DisplayURL string `json:"display_url"`
	DeleteURL  string `json:"delete_url"`
}

// response is the subset of the ImgBB reply we read
type response struct {
	Data *Upload `json:"data"`
}

// Client is an ImgBB API client
type Client struct {
	uploadURL  string
	apiKey     string
	expiration time.Duration
	httpClient *http.Client
}

// Config holds client settings
type Config struct {
	APIKey    string
	UploadURL string
	Timeout   time.Duration
	// Expiration asks ImgBB to delete the image after this long; zero keeps it
	Expiration time.Duration
}

// NewClient creates a new ImgBB client
func NewClient(cfg Config) *Client {
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		uploadURL:  cfg.UploadURL,
		apiKey:     cfg.APIKey,
		expiration: cfg.Expiration,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Upload sends a base64-encoded image. name is optional.
func (c *Client) Upload(ctx context.Context, imageBase64, name string) (*Upload, error) {
	if imageBase64 == "" {
		return nil, apperr.Validation("imageBase64 required")
	}
	if c.apiKey == "" {
		return nil, apperr.Configuration("IMGBB_API_KEY missing")
	}

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", imageBase64)
	if name != "" {
		form.Set("name", name)
	}
	if c.expiration > 0 {
		form.Set("expiration", strconv.Itoa(int(c.expiration.Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("ImgBB upload failed", err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Upstream("ImgBB upload failed", err.Error())
	}

	// details carry whatever ImgBB said, JSON if it parses
	var details any
	if err := json.Unmarshal(data, &details); err != nil {
		details = string(data)
	}

	var r response
	_ = json.Unmarshal(data, &r)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || r.Data == nil || r.Data.URL == "" {
		return nil, apperr.Upstream("ImgBB upload failed", details)
	}

	return r.Data, nil
}
