package httputil

import (
	"fmt"
	"net/http"
)

// ContentTypeEventStream is the media type of a Server-Sent Events response.
const ContentTypeEventStream = "text/event-stream"

// SetSSEHeaders sets the standard headers for a Server-Sent Events response.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentTypeEventStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteDataFrame writes one SSE data frame and flushes it when the writer
// supports flushing, so each frame reaches the client as soon as it is ready.
func WriteDataFrame(w http.ResponseWriter, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// WriteDoneFrame writes the literal [DONE] terminator frame.
func WriteDoneFrame(w http.ResponseWriter) error {
	return WriteDataFrame(w, []byte("[DONE]"))
}
