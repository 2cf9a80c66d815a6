package concierge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Stream runs one streaming exchange. It issues a stream=true request,
// negotiates the response framing from the declared content type, and invokes
// onDelta synchronously for every text delta in arrival order while
// accumulating the final text. When the backend ignores the streaming flag and
// answers with a plain JSON document, the Outcome is populated directly and
// zero deltas are emitted. A non-2xx status returns a *StatusError and no
// Outcome, partial or otherwise.
func (c *Client) Stream(ctx context.Context, prompt string, grounded bool, onDelta DeltaFunc) (*Outcome, error) {
	// Use a client without timeout for streaming (context carries deadline),
	// but reuse the same transport so the proxy setting is preserved.
	streamClient := &http.Client{Transport: c.streamTransport}
	resp, err := c.post(ctx, streamClient, &CompletionRequest{
		Message: prompt,
		Stream:  true,
		Strict:  grounded,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	f, ok := framingFromContentType(resp.Header.Get("Content-Type"))
	if !ok {
		var reply Reply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &Outcome{FinalText: reply.Reply, Sources: reply.Sources}, nil
	}

	return readStream(resp.Body, f, onDelta)
}

// readStream drives the line decoder and extractor over the body until a
// terminal signal or EOF. The last non-empty sources list seen wins; backends
// emit citations at stream end and earlier partial lists are superseded.
func readStream(body io.Reader, f framing, onDelta DeltaFunc) (*Outcome, error) {
	decoder := newLineDecoder(f)
	var finalText strings.Builder
	var sources []string

	apply := func(line string) (terminal bool) {
		ev := extractLine(f, line)
		if len(ev.sources) > 0 {
			sources = ev.sources
		}
		switch ev.kind {
		case eventTerminal:
			return true
		case eventDelta:
			finalText.WriteString(ev.delta)
			if onDelta != nil {
				onDelta(ev.delta)
			}
		}
		return false
	}

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range decoder.Feed(buf[:n]) {
				if apply(line) {
					return &Outcome{FinalText: finalText.String(), Sources: sources}, nil
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
	}

	if line, ok := decoder.Close(); ok {
		apply(line)
	}
	return &Outcome{FinalText: finalText.String(), Sources: sources}, nil
}
