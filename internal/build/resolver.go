package build

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ckeiituk/iplist-bot/internal/notify"
)

// Resolver completes pending builds by delivering their deferred
// notifications and removing them from the ledger. Each record is resolved
// at most once: Pop is the removal and the send happens after it.
type Resolver struct {
	ledger Ledger
	sink   notify.Sink
}

func NewResolver(ledger Ledger, sink notify.Sink) *Resolver {
	return &Resolver{ledger: ledger, sink: sink}
}

// Success resolves every pending build, not only the one matching the event
// commit: the CI pipeline builds from linear history, so one green run is
// presumed to include all queued changes. Revisit before allowing
// concurrent unrelated builds.
func (r *Resolver) Success(ctx context.Context, headSHA string) {
	shas := r.ledger.Keys()
	slog.InfoContext(ctx, "build succeeded, resolving pending builds",
		"head_sha", headSHA,
		"pending", len(shas))
	for _, sha := range shas {
		r.notifySuccess(ctx, sha)
	}
}

// Failure resolves only the pending build whose commit matches the event.
func (r *Resolver) Failure(ctx context.Context, headSHA string) {
	if _, ok := r.ledger.Get(headSHA); !ok {
		slog.InfoContext(ctx, "build failed for untracked commit", "head_sha", headSHA)
		return
	}
	r.notifyFailure(ctx, headSHA)
}

func (r *Resolver) notifySuccess(ctx context.Context, sha string) {
	pending, ok := r.ledger.Pop(sha)
	if !ok {
		return
	}

	text := fmt.Sprintf(
		"✅ *Build finished successfully!*\n"+
			"Site `%s` has been added to the lists.\n\n"+
			"🔄 *Tip:* refresh the profile in your VPN client so the change takes effect.",
		pending.Domain,
	)
	if err := r.sink.Send(ctx, pending.Target, text); err != nil {
		slog.ErrorContext(ctx, "failed to send success notification",
			"error", err,
			"commit_sha", sha,
			"domain", pending.Domain)
	}
}

func (r *Resolver) notifyFailure(ctx context.Context, sha string) {
	pending, ok := r.ledger.Pop(sha)
	if !ok {
		return
	}

	text := fmt.Sprintf(
		"❌ *Build failed!*\nSomething went wrong while adding `%s`.",
		pending.Domain,
	)
	if err := r.sink.Send(ctx, pending.Target, text); err != nil {
		slog.ErrorContext(ctx, "failed to send failure notification",
			"error", err,
			"commit_sha", sha,
			"domain", pending.Domain)
	}
}
