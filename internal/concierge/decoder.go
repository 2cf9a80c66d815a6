package concierge

import (
	"encoding/json"
	"strings"
)

// lineDecoder reassembles complete protocol lines from arbitrary chunks of a
// response body. Network reads split lines at unpredictable points, so the
// trailing fragment of each chunk is retained until its terminator arrives.
// A decoder serves exactly one stream and is dead after Close.
type lineDecoder struct {
	framing framing
	pending string
	closed  bool
}

func newLineDecoder(f framing) *lineDecoder {
	return &lineDecoder{framing: f}
}

// Feed appends chunk to the rolling buffer and returns every complete line in
// it. Both \n and \r\n terminate a line; terminators are stripped. Empty lines
// (doubled terminators marking event boundaries) are yielded as empty strings.
// An empty chunk yields nothing; a terminator-free chunk only grows the buffer.
func (d *lineDecoder) Feed(chunk []byte) []string {
	if d.closed || len(chunk) == 0 {
		return nil
	}
	d.pending += string(chunk)
	if !strings.Contains(d.pending, "\n") {
		return nil
	}
	parts := strings.Split(d.pending, "\n")
	d.pending = parts[len(parts)-1]
	lines := parts[:len(parts)-1]
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Close flushes the retained fragment as one final line when it independently
// looks like a well-formed line for the active framing; otherwise the fragment
// is discarded. Well-formed means: data:-prefixed for event-stream, valid JSON
// for NDJSON, non-blank for plain text. Feed returns nil after Close.
func (d *lineDecoder) Close() (string, bool) {
	if d.closed {
		return "", false
	}
	d.closed = true
	frag := strings.TrimSuffix(d.pending, "\r")
	d.pending = ""
	if frag == "" {
		return "", false
	}
	switch d.framing {
	case framingEventStream:
		if strings.HasPrefix(frag, "data:") {
			return frag, true
		}
	case framingNDJSON:
		if json.Valid([]byte(frag)) {
			return frag, true
		}
	case framingPlainText:
		if strings.TrimSpace(frag) != "" {
			return frag, true
		}
	}
	return "", false
}
