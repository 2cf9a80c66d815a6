package concierge

import (
	"encoding/json"
	"strings"
)

// doneToken is the literal end-of-stream sentinel. It is recognized only in
// event-stream framing; NDJSON and plain-text backends end by closing the body.
const doneToken = "[DONE]"

type lineEventKind int

const (
	eventNone lineEventKind = iota
	eventDelta
	eventTerminal
)

// lineEvent is the classification of one decoded line. Sources piggyback on
// any kind: backends emit citation lists in frames of their own.
type lineEvent struct {
	kind    lineEventKind
	delta   string
	sources []string
}

// extractLine classifies one decoded line under the active framing.
func extractLine(f framing, line string) lineEvent {
	if f == framingEventStream {
		return extractEventLine(line)
	}
	return extractRawLine(line)
}

// extractEventLine handles event-stream framing. Lines without the data:
// prefix (event:, id:, retry:, comments, blank event boundaries) carry no
// content, and a payload that is not JSON is control noise, never forwarded —
// event-stream is a specified protocol, so anything unparseable is not text
// meant for the transcript.
func extractEventLine(line string) lineEvent {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return lineEvent{kind: eventNone}
	}
	payload := strings.TrimPrefix(rest, " ")
	if payload == doneToken {
		return lineEvent{kind: eventTerminal}
	}
	var p streamPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return lineEvent{kind: eventNone}
	}
	return payloadEvent(p)
}

// extractRawLine handles NDJSON and plain-text framing. The optional data:
// prefix is stripped the same way, but a payload that fails JSON parsing is
// forwarded verbatim as the delta: plain-text backends legitimately emit bare
// text with no envelope.
func extractRawLine(line string) lineEvent {
	if strings.TrimSpace(line) == "" {
		return lineEvent{kind: eventNone}
	}
	payload := line
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		payload = strings.TrimPrefix(rest, " ")
		if payload == "" {
			return lineEvent{kind: eventNone}
		}
	}
	var p streamPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return lineEvent{kind: eventDelta, delta: payload}
	}
	return payloadEvent(p)
}

func payloadEvent(p streamPayload) lineEvent {
	ev := lineEvent{kind: eventNone, sources: p.Sources}
	switch {
	case p.Delta != "":
		ev.kind = eventDelta
		ev.delta = p.Delta
	case p.Text != "":
		ev.kind = eventDelta
		ev.delta = p.Text
	}
	return ev
}
