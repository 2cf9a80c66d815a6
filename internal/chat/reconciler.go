package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/raynmakr/cb-future-site/internal/concierge"
	apierrors "github.com/raynmakr/cb-future-site/internal/errors"
)

// DefaultOfflineNotice is shown when every tier of the fallback ladder failed.
const DefaultOfflineNotice = "The concierge is offline right now. Please try again in a few minutes."

// Tier names the rung of the fallback ladder that produced the assistant
// content for a turn.
type Tier string

const (
	// TierStream: deltas arrived incrementally and were appended in order.
	TierStream Tier = "stream"
	// TierOutcome: zero deltas, but the session's final text was non-empty
	// (the backend answered the streaming request with a JSON document).
	TierOutcome Tier = "outcome"
	// TierRetry: the streaming exchange produced nothing; a fresh
	// non-streaming call supplied the content.
	TierRetry Tier = "retry"
	// TierOffline: the retry failed too; the fixed offline notice was used.
	TierOffline Tier = "offline"
)

// Listener observes transcript changes. Callbacks run synchronously on the
// goroutine driving Send, in arrival order.
type Listener interface {
	// OnMessage fires when an entry is appended to the transcript.
	OnMessage(msg Message)
	// OnDelta fires after delta was appended to msg's content.
	OnDelta(msg Message, delta string)
	// OnResolve fires once per turn with the final assistant message.
	OnResolve(msg Message, tier Tier)
}

// Completer is the slice of the concierge client the Reconciler drives.
type Completer interface {
	Stream(ctx context.Context, prompt string, grounded bool, onDelta concierge.DeltaFunc) (*concierge.Outcome, error)
	Ask(ctx context.Context, prompt string, grounded bool) (*concierge.Reply, error)
}

type Config struct {
	Client        Completer
	Grounded      bool
	OfflineNotice string // empty uses DefaultOfflineNotice
}

// Reconciler owns one linear conversation: the ordered transcript, the
// in-flight flag, and the fallback ladder that guarantees every accepted turn
// resolves to non-empty assistant content.
type Reconciler struct {
	client        Completer
	grounded      bool
	offlineNotice string

	mu        sync.Mutex
	messages  []Message
	inFlight  bool
	listeners []Listener
}

func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Client == nil {
		return nil, errors.New("chat: nil completion client")
	}
	notice := cfg.OfflineNotice
	if notice == "" {
		notice = DefaultOfflineNotice
	}
	return &Reconciler{
		client:        cfg.Client,
		grounded:      cfg.Grounded,
		offlineNotice: notice,
	}, nil
}

// Subscribe registers a listener for transcript changes.
func (r *Reconciler) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Messages returns a snapshot copy of the transcript in render order.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Send runs one full exchange on the caller's goroutine: it appends a user
// entry and an empty assistant placeholder, then walks the fallback ladder
// until the placeholder holds content. Blank text returns ErrEmptyMessage and
// a concurrent exchange returns ErrExchangeInFlight; neither touches the
// transcript. The in-flight flag is cleared on every exit path.
func (r *Reconciler) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apierrors.ErrEmptyMessage
	}

	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return apierrors.ErrExchangeInFlight
	}
	r.inFlight = true
	user := newUserMessage(text)
	placeholder := newAssistantPlaceholder()
	r.messages = append(r.messages, user, placeholder)
	idx := len(r.messages) - 1
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	r.notifyMessage(user)
	r.notifyMessage(placeholder)

	tier := r.runLadder(ctx, text, idx)
	turnsTotal.WithLabelValues(string(tier)).Inc()

	final := r.messageAt(idx)
	for _, l := range r.snapshotListeners() {
		l.OnResolve(final, tier)
	}
	return nil
}

// runLadder walks the degradation tiers in order; each tier is entered only
// when the previous one produced nothing. TierOffline cannot fail.
func (r *Reconciler) runLadder(ctx context.Context, prompt string, idx int) Tier {
	sawDelta := false
	outcome, err := r.client.Stream(ctx, prompt, r.grounded, func(delta string) {
		sawDelta = true
		deltasTotal.Inc()
		r.appendDelta(idx, delta)
	})
	if err != nil {
		upstreamErrors.WithLabelValues("stream").Inc()
		slog.Warn("streaming exchange failed", "error", err)
	}
	if outcome != nil && len(outcome.Sources) > 0 {
		r.setSources(idx, outcome.Sources)
	}

	if sawDelta {
		return TierStream
	}
	if outcome != nil && outcome.FinalText != "" {
		r.setContent(idx, outcome.FinalText)
		return TierOutcome
	}

	reply, err := r.client.Ask(ctx, prompt, r.grounded)
	if err != nil {
		upstreamErrors.WithLabelValues("retry").Inc()
		slog.Warn("fallback exchange failed", "error", err)
	} else if strings.TrimSpace(reply.Reply) != "" {
		r.setContent(idx, reply.Reply)
		if len(reply.Sources) > 0 {
			r.setSources(idx, reply.Sources)
		}
		return TierRetry
	}

	r.setContent(idx, r.offlineNotice)
	return TierOffline
}

func (r *Reconciler) appendDelta(idx int, delta string) {
	r.mu.Lock()
	r.messages[idx].Content += delta
	msg := r.messages[idx]
	r.mu.Unlock()
	for _, l := range r.snapshotListeners() {
		l.OnDelta(msg, delta)
	}
}

func (r *Reconciler) setContent(idx int, content string) {
	r.mu.Lock()
	r.messages[idx].Content = content
	r.mu.Unlock()
}

func (r *Reconciler) setSources(idx int, sources []string) {
	r.mu.Lock()
	r.messages[idx].Sources = sources
	r.mu.Unlock()
}

func (r *Reconciler) messageAt(idx int) Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[idx]
}

func (r *Reconciler) notifyMessage(msg Message) {
	for _, l := range r.snapshotListeners() {
		l.OnMessage(msg)
	}
}

func (r *Reconciler) snapshotListeners() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Listener(nil), r.listeners...)
}
