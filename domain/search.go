package domain

// GifResult is one entry returned by the image search proxy:
// a small preview plus the URL the user may submit as a MediaURL.
type GifResult struct {
	PreviewURL string `json:"previewUrl"`
	URL        string `json:"url"`
}
