package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// Mode selects how the mock completion backend answers a stream=true request.
type Mode int

const (
	// ModeEventStream word-splits Reply into data: {"delta":…} frames followed
	// by a sources frame (when set) and the [DONE] terminator.
	ModeEventStream Mode = iota
	// ModeNDJSON emits one {"delta":…} JSON object per line.
	ModeNDJSON
	// ModePlainText emits one bare word per line with no envelope.
	ModePlainText
	// ModeJSONBody ignores the streaming flag and answers with a single JSON
	// {"reply":…} document.
	ModeJSONBody
	// ModeEmptyStream answers 200 with an event-stream content type and an
	// empty body.
	ModeEmptyStream
	// ModeError answers with StatusCode and a plain error body.
	ModeError
)

// MockBackend is an httptest.Server that simulates the hosted completion API
// at POST /v1/completions.
type MockBackend struct {
	Server *httptest.Server

	Mode    Mode
	Reply   string
	Sources []string

	// StatusCode is the failure status used by ModeError and FailBlocking.
	StatusCode int
	// FailBlocking makes stream=false requests fail with StatusCode.
	FailBlocking bool
	// RawLines, when set, is streamed verbatim (newline-terminated) instead of
	// the word-split Reply, for exercising malformed and control lines.
	RawLines []string

	// LastRequest captures the most recent request body parsed.
	LastRequest map[string]any
}

// NewMockBackend creates and starts a mock completion server.
func NewMockBackend(reply string) *MockBackend {
	m := &MockBackend{
		Mode:       ModeEventStream,
		Reply:      reply,
		StatusCode: http.StatusBadGateway,
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockBackend) URL() string {
	return m.Server.URL
}

func (m *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/completions" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	m.LastRequest = body

	stream, _ := body["stream"].(bool)
	if !stream {
		if m.FailBlocking {
			http.Error(w, "upstream unavailable", m.StatusCode)
			return
		}
		m.writeJSONBody(w)
		return
	}

	switch m.Mode {
	case ModeError:
		http.Error(w, "upstream unavailable", m.StatusCode)
	case ModeJSONBody:
		m.writeJSONBody(w)
	case ModeEmptyStream:
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	case ModeNDJSON:
		m.writeNDJSON(w)
	case ModePlainText:
		m.writePlainText(w)
	default:
		m.writeEventStream(w)
	}
}

func (m *MockBackend) writeJSONBody(w http.ResponseWriter) {
	resp := map[string]any{"reply": m.Reply}
	if len(m.Sources) > 0 {
		resp["sources"] = m.Sources
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *MockBackend) writeEventStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, hasFlusher := w.(http.Flusher)
	flush := func() {
		if hasFlusher {
			flusher.Flush()
		}
	}

	for _, line := range m.streamLines(true) {
		fmt.Fprintf(w, "%s\n\n", line)
		flush()
	}
	if len(m.Sources) > 0 {
		data, _ := json.Marshal(map[string]any{"sources": m.Sources})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flush()
}

func (m *MockBackend) writeNDJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	for _, line := range m.streamLines(false) {
		fmt.Fprintf(w, "%s\n", line)
	}
	if len(m.Sources) > 0 {
		data, _ := json.Marshal(map[string]any{"sources": m.Sources})
		fmt.Fprintf(w, "%s\n", data)
	}
}

func (m *MockBackend) writePlainText(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	if len(m.RawLines) > 0 {
		for _, line := range m.RawLines {
			fmt.Fprintf(w, "%s\n", line)
		}
		return
	}
	for i, word := range splitWords(m.Reply) {
		if i > 0 {
			word = " " + word
		}
		fmt.Fprintf(w, "%s\n", word)
	}
}

// streamLines renders the configured stream: RawLines verbatim when set,
// otherwise the word-split Reply wrapped as delta payloads.
func (m *MockBackend) streamLines(ssePrefix bool) []string {
	if len(m.RawLines) > 0 {
		return m.RawLines
	}
	var lines []string
	for i, word := range splitWords(m.Reply) {
		if i > 0 {
			word = " " + word
		}
		data, _ := json.Marshal(map[string]string{"delta": word})
		if ssePrefix {
			lines = append(lines, fmt.Sprintf("data: %s", data))
		} else {
			lines = append(lines, string(data))
		}
	}
	return lines
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, c := range s {
		if c != ' ' {
			if start == -1 {
				start = i
			}
		} else {
			if start != -1 {
				words = append(words, s[start:i])
				start = -1
			}
		}
	}
	if start != -1 {
		words = append(words, s[start:])
	}
	if len(words) == 0 {
		words = []string{s}
	}
	return words
}
