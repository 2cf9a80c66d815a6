package integration

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raynmakr/cb-future-site/internal/chat"
	"github.com/raynmakr/cb-future-site/internal/config"
	"github.com/raynmakr/cb-future-site/internal/web"
	"github.com/raynmakr/cb-future-site/test/testutil"
)

func newTestSite(t *testing.T, upstreamURL string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		ListenAddr:     ":0",
		UpstreamURL:    upstreamURL,
		Grounded:       true,
		RequestTimeout: 10 * time.Second,
	}
	srv := web.New(cfg)
	site := httptest.NewServer(srv.Handler())
	t.Cleanup(site.Close)
	return site
}

func postConcierge(t *testing.T, site *httptest.Server, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, site.URL+"/api/concierge", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// relayFrames reads an SSE relay response and returns the concatenated delta
// text, the sources frame (if any), and whether the [DONE] frame arrived.
func relayFrames(t *testing.T, body io.Reader) (text string, sources []string, done bool) {
	t.Helper()
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			done = true
			continue
		}
		var frame struct {
			Delta   string   `json:"delta"`
			Sources []string `json:"sources"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			t.Fatalf("malformed relay frame %q: %v", payload, err)
		}
		text += frame.Delta
		if len(frame.Sources) > 0 {
			sources = frame.Sources
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read relay: %v", err)
	}
	return text, sources, done
}

func TestRelayStreaming(t *testing.T) {
	mock := testutil.NewMockBackend("Riyadh is a hub.")
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{"message":"Tell me about Riyadh","stream":true}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected SSE content-type, got %q", ct)
	}

	text, _, done := relayFrames(t, resp.Body)
	if text != "Riyadh is a hub." {
		t.Errorf("expected full answer, got %q", text)
	}
	if !done {
		t.Error("expected [DONE] terminator frame")
	}

	// The upstream request carried the grounded flag.
	if mock.LastRequest == nil {
		t.Fatal("mock did not receive a request")
	}
	if strict, _ := mock.LastRequest["strict"].(bool); !strict {
		t.Error("expected strict=true forwarded upstream")
	}
}

func TestRelayNDJSONUpstream(t *testing.T) {
	mock := testutil.NewMockBackend("one two three")
	mock.Mode = testutil.ModeNDJSON
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{"message":"count","stream":true}`)
	defer resp.Body.Close()

	text, _, done := relayFrames(t, resp.Body)
	if text != "one two three" {
		t.Errorf("expected full answer, got %q", text)
	}
	if !done {
		t.Error("expected [DONE] terminator frame")
	}
}

func TestRelayJSONBodyUpstream(t *testing.T) {
	// Scenario: upstream ignores stream=true and answers application/json.
	mock := testutil.NewMockBackend("Hello")
	mock.Mode = testutil.ModeJSONBody
	mock.Sources = []string{"doc1.pdf"}
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{"message":"hi","stream":true}`)
	defer resp.Body.Close()

	text, sources, done := relayFrames(t, resp.Body)
	if text != "Hello" {
		t.Errorf("expected %q, got %q", "Hello", text)
	}
	if len(sources) != 1 || sources[0] != "doc1.pdf" {
		t.Errorf("expected sources [doc1.pdf], got %v", sources)
	}
	if !done {
		t.Error("expected [DONE] terminator frame")
	}
}

func TestRelayRetryTier(t *testing.T) {
	// Scenario: streaming yields nothing, the non-streaming retry answers.
	mock := testutil.NewMockBackend("Fallback answer")
	mock.Mode = testutil.ModeEmptyStream
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{"message":"hi","stream":true}`)
	defer resp.Body.Close()

	text, _, _ := relayFrames(t, resp.Body)
	if text != "Fallback answer" {
		t.Errorf("expected retry reply, got %q", text)
	}
}

func TestRelayOfflineTier(t *testing.T) {
	// Scenario: both the stream and the retry fail with 502.
	mock := testutil.NewMockBackend("")
	mock.Mode = testutil.ModeError
	mock.FailBlocking = true
	mock.StatusCode = http.StatusBadGateway
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{"message":"hi","stream":true}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relay must not surface upstream failures, got %d", resp.StatusCode)
	}
	text, sources, done := relayFrames(t, resp.Body)
	if text != chat.DefaultOfflineNotice {
		t.Errorf("expected offline notice, got %q", text)
	}
	if sources != nil {
		t.Errorf("expected no sources, got %v", sources)
	}
	if !done {
		t.Error("expected [DONE] terminator frame")
	}
}

func TestConciergeJSONMode(t *testing.T) {
	mock := testutil.NewMockBackend("Direct answer")
	mock.Sources = []string{"ref.pdf"}
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{"message":"hi","stream":false}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var result struct {
		Reply   string   `json:"reply"`
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Reply != "Direct answer" {
		t.Errorf("expected reply, got %q", result.Reply)
	}
	if len(result.Sources) != 1 || result.Sources[0] != "ref.pdf" {
		t.Errorf("expected sources [ref.pdf], got %v", result.Sources)
	}
}

func TestConciergeRejectsBlankMessage(t *testing.T) {
	mock := testutil.NewMockBackend("unused")
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	for _, body := range []string{`{"message":"","stream":true}`, `{"message":"   ","stream":false}`} {
		resp := postConcierge(t, site, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for %s, got %d", body, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
			t.Errorf("expected JSON error body, got %q", ct)
		}
		resp.Body.Close()
	}
	if mock.LastRequest != nil {
		t.Error("blank messages must never reach the upstream")
	}
}

func TestConciergeRejectsMalformedBody(t *testing.T) {
	mock := testutil.NewMockBackend("unused")
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp := postConcierge(t, site, `{not json`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLandingPage(t *testing.T) {
	mock := testutil.NewMockBackend("unused")
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	resp, err := http.Get(site.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "/api/concierge") {
		t.Error("landing page should wire the widget to the relay endpoint")
	}
}

func TestOperationalEndpoints(t *testing.T) {
	mock := testutil.NewMockBackend("unused")
	defer mock.Close()
	site := newTestSite(t, mock.URL())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(site.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
