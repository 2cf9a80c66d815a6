package concierge

import "mime"

// framing identifies the wire format of a streaming response body. It is
// negotiated once per response from the declared content type, never by
// sniffing individual lines.
type framing int

const (
	framingEventStream framing = iota
	framingNDJSON
	framingPlainText
)

// framingFromContentType maps a response Content-Type header to a streaming
// framing. The second return is false when the content type is not one of the
// streaming kinds, in which case the body is a single JSON document.
func framingFromContentType(contentType string) (framing, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, false
	}
	switch mediaType {
	case "text/event-stream":
		return framingEventStream, true
	case "application/x-ndjson", "application/jsonl", "application/x-jsonlines":
		return framingNDJSON, true
	case "text/plain":
		return framingPlainText, true
	}
	return 0, false
}
