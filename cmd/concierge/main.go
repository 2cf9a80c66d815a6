// Command concierge is a terminal client for the Concierge engine: the same
// Reconciler the widget relay uses, driven over a stdin loop with deltas
// printed as they arrive.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/raynmakr/cb-future-site/internal/chat"
	"github.com/raynmakr/cb-future-site/internal/concierge"
	"github.com/raynmakr/cb-future-site/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	client := concierge.NewClient(cfg.UpstreamURL, cfg.UpstreamAPIKey, cfg.RequestTimeout, cfg.UpstreamProxyURL)
	rec, err := chat.NewReconciler(chat.Config{
		Client:        client,
		Grounded:      cfg.Grounded,
		OfflineNotice: cfg.OfflineNotice,
	})
	if err != nil {
		slog.Error("concierge setup failed", "error", err)
		os.Exit(1)
	}
	rec.Subscribe(printListener{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Concierge terminal. Empty line to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if err := rec.Send(ctx, line); err != nil {
			fmt.Fprintln(os.Stderr, "send:", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Println()
}

// printListener renders the assistant turn on stdout as it resolves.
type printListener struct{}

func (printListener) OnMessage(chat.Message) {}

func (printListener) OnDelta(_ chat.Message, delta string) {
	fmt.Print(delta)
}

func (printListener) OnResolve(msg chat.Message, tier chat.Tier) {
	if tier != chat.TierStream {
		fmt.Print(msg.Content)
	}
	if len(msg.Sources) > 0 {
		fmt.Printf("\n[sources: %s]", strings.Join(msg.Sources, ", "))
	}
	fmt.Println()
}
