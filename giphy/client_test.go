package giphy

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	client := NewClient(slog.Default(), "test-key")
	client.endpoint = upstream.URL
	return client
}

func Test_Search_MissingAPIKey(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), "")

	_, err := client.Search(context.Background(), "cats", 0)
	req.ErrorIs(err, errors.ErrMissingAPIKey)
}

func Test_Search_MapsPreviewAndGifVariants(t *testing.T) {
	req := require.New(t)
	payload := `{"data":[
		{"images":{
			"preview_gif":{"url":"https://media.test/preview1.gif"},
			"downsized":{"url":"https://media.test/down1.gif"}
		}},
		{"images":{
			"original":{"url":"https://media.test/orig2.gif"}
		}},
		{"images":{}}
	]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	})

	results, err := client.Search(context.Background(), "cats", 0)
	req.NoError(err)
	req.Len(results, 2)

	req.Equal("https://media.test/preview1.gif", results[0].PreviewURL)
	req.Equal("https://media.test/down1.gif", results[0].URL)

	// No preview variant: the gif URL doubles as the preview.
	req.Equal("https://media.test/orig2.gif", results[1].PreviewURL)
	req.Equal("https://media.test/orig2.gif", results[1].URL)
}

func Test_Search_LimitDefaultsAndCap(t *testing.T) {
	req := require.New(t)
	var seenLimits []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seenLimits = append(seenLimits, r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := client.Search(context.Background(), "cats", 0)
	req.NoError(err)
	_, err = client.Search(context.Background(), "cats", 30)
	req.NoError(err)
	_, err = client.Search(context.Background(), "cats", 100)
	req.NoError(err)

	req.Equal([]string{"20", "30", "20"}, seenLimits)
}

func Test_Search_UpstreamFailureKeepsStatus(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), "cats", 0)

	var upstream *errors.UpstreamError
	req.ErrorAs(err, &upstream)
	req.Equal(http.StatusTooManyRequests, upstream.Status)
	req.Contains(upstream.Body, "rate limited")
}

func Test_Search_ForwardsQueryAndCredential(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("funny cats", r.URL.Query().Get("q"))
		req.Equal("test-key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := client.Search(context.Background(), "funny cats", 0)
	req.NoError(err)
}
