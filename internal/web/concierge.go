package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/raynmakr/cb-future-site/internal/chat"
	"github.com/raynmakr/cb-future-site/internal/concierge"
	apierrors "github.com/raynmakr/cb-future-site/internal/errors"
	"github.com/raynmakr/cb-future-site/internal/httputil"
)

// conciergeHandler serves the widget endpoint. Each request gets its own
// Reconciler: the upstream protocol carries no history, so server-side turns
// are independent and instances never interfere.
type conciergeHandler struct {
	client        *concierge.Client
	grounded      bool
	offlineNotice string
}

func newConciergeHandler(client *concierge.Client, grounded bool, offlineNotice string) *conciergeHandler {
	return &conciergeHandler{client: client, grounded: grounded, offlineNotice: offlineNotice}
}

type widgetRequest struct {
	Message string `json:"message"`
	Stream  bool   `json:"stream"`
	Strict  *bool  `json:"strict,omitempty"` // nil uses the server default
}

func (h *conciergeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req widgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrMalformedBody.Error())
		return
	}
	// Validate before committing to a response framing so blank input always
	// gets a JSON 400, even on stream requests.
	if strings.TrimSpace(req.Message) == "" {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrEmptyMessage.Error())
		return
	}

	grounded := h.grounded
	if req.Strict != nil {
		grounded = *req.Strict
	}
	rec, err := chat.NewReconciler(chat.Config{
		Client:        h.client,
		Grounded:      grounded,
		OfflineNotice: h.offlineNotice,
	})
	if err != nil {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Stream {
		h.serveStream(w, r, rec, req.Message)
		return
	}
	h.serveJSON(w, r, rec, req.Message)
}

// serveStream relays the turn downstream as an event stream in the same
// micro-format the engine consumes: one data frame per delta, one sources
// frame when citations arrived, then the [DONE] terminator. The ladder runs
// server-side, so the widget never sees a raw upstream failure.
func (h *conciergeHandler) serveStream(w http.ResponseWriter, r *http.Request, rec *chat.Reconciler, message string) {
	httputil.SetSSEHeaders(w)
	fw := newFlushWriter(w)
	rec.Subscribe(&relayListener{w: fw})
	if err := rec.Send(r.Context(), message); err != nil {
		// Input was validated above; Send only rejects invalid input.
		slog.Error("relay send rejected", "error", err)
	}
	_ = httputil.WriteDoneFrame(fw)
}

func (h *conciergeHandler) serveJSON(w http.ResponseWriter, r *http.Request, rec *chat.Reconciler, message string) {
	if err := rec.Send(r.Context(), message); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	msgs := rec.Messages()
	final := msgs[len(msgs)-1]
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(concierge.Reply{Reply: final.Content, Sources: final.Sources})
}

// relayListener forwards transcript changes to the downstream event stream.
type relayListener struct {
	w http.ResponseWriter
}

func (l *relayListener) OnMessage(chat.Message) {}

func (l *relayListener) OnDelta(_ chat.Message, delta string) {
	payload, _ := json.Marshal(map[string]string{"delta": delta})
	_ = httputil.WriteDataFrame(l.w, payload)
}

func (l *relayListener) OnResolve(msg chat.Message, tier chat.Tier) {
	// Non-stream tiers produce the whole answer at once; emit it as a single
	// delta so the widget renders every tier the same way.
	if tier != chat.TierStream && msg.Content != "" {
		payload, _ := json.Marshal(map[string]string{"delta": msg.Content})
		_ = httputil.WriteDataFrame(l.w, payload)
	}
	if len(msg.Sources) > 0 {
		payload, _ := json.Marshal(map[string][]string{"sources": msg.Sources})
		_ = httputil.WriteDataFrame(l.w, payload)
	}
}
