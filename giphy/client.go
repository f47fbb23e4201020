// Package giphy is the stateless image-search proxy: a free-text query
// in, a list of {previewUrl, url} pairs out. It holds the server-side
// credential and has no interaction with the chat hub beyond supplying
// URLs a user may later submit as a message's mediaUrl.
package giphy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"chat-relay/domain"
	"chat-relay/errors"
)

const (
	searchEndpoint = "https://api.giphy.com/v1/gifs/search"

	// DefaultLimit applies when the caller gives no result count;
	// MaxLimit is the hard cap regardless of what was asked.
	DefaultLimit = 20
	MaxLimit     = 50
)

type Client struct {
	log      *slog.Logger
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewClient(log *slog.Logger, apiKey string) *Client {
	return &Client{
		log:      log,
		apiKey:   apiKey,
		endpoint: searchEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// searchResponse mirrors the subset of the GIPHY payload we read:
// per result, a map of image variants each carrying a url.
type searchResponse struct {
	Data []struct {
		Images map[string]imageVariant `json:"images"`
	} `json:"data"`
}

type imageVariant struct {
	URL string `json:"url"`
}

// Search proxies the query upstream. A missing credential is a
// client-visible configuration error; a non-2xx upstream answer is
// surfaced verbatim with its status and body.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.GifResult, error) {
	if c.apiKey == "" {
		return nil, errors.ErrMissingAPIKey
	}
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("rating", "g")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building giphy request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling giphy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading giphy response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errors.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed searchResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding giphy response: %w", err)
	}

	results := make([]domain.GifResult, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		preview := pickVariant(item.Images, "preview_gif", "fixed_height_small_still", "fixed_height_small")
		gif := pickVariant(item.Images, "downsized", "original", "fixed_height")
		if gif == "" {
			continue
		}
		if preview == "" {
			preview = gif
		}
		results = append(results, domain.GifResult{PreviewURL: preview, URL: gif})
	}
	return results, nil
}

// pickVariant returns the url of the first present variant, in
// preference order.
func pickVariant(images map[string]imageVariant, keys ...string) string {
	for _, key := range keys {
		if variant, ok := images[key]; ok && variant.URL != "" {
			return variant.URL
		}
	}
	return ""
}
