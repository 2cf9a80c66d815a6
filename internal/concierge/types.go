package concierge

// CompletionRequest is the JSON body sent to the completion endpoint.
type CompletionRequest struct {
	Message string `json:"message"`
	Stream  bool   `json:"stream"`
	Strict  bool   `json:"strict"`
}

// Reply is the non-streaming completion response body.
type Reply struct {
	Reply   string   `json:"reply"`
	Sources []string `json:"sources,omitempty"`
}

// Outcome is the authoritative result of one streaming exchange. FinalText is
// the concatenation of all deltas, or the full reply when the backend answered
// with a plain JSON document and zero deltas were emitted.
type Outcome struct {
	FinalText string
	Sources   []string
}

// DeltaFunc receives each text delta synchronously, in arrival order.
type DeltaFunc func(delta string)

// streamPayload is the micro-format carried inside a data: payload.
type streamPayload struct {
	Delta   string   `json:"delta,omitempty"`
	Text    string   `json:"text,omitempty"`
	Sources []string `json:"sources,omitempty"`
}
