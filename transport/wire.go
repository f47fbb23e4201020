package transport

// SendRequest is the inbound wire frame: one send intent per frame.
// Text and mediaUrl are optional; blanks are treated as absent.
type SendRequest struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	MediaURL string `json:"mediaUrl"`
}
