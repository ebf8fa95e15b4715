package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// PublishReport summarizes a successful publish for the admin log channel.
type PublishReport struct {
	Username string
	UserID   int64
	Domain   string
	Category string
	FileURL  string
}

// Reporter posts publish reports to a configured log channel/topic.
// Delivery failures are logged and swallowed: reporting must never fail an
// onboarding request.
type Reporter struct {
	sink   Sink
	target Target
}

// NewReporter returns nil when no log channel is configured; a nil Reporter
// is safe to use and does nothing.
func NewReporter(sink Sink, target Target) *Reporter {
	if target.ChatID == 0 {
		return nil
	}
	return &Reporter{sink: sink, target: target}
}

func (r *Reporter) Publish(ctx context.Context, rep PublishReport) {
	if r == nil {
		return
	}

	mention := rep.Username
	if mention != "" && !strings.HasPrefix(mention, "@") {
		mention = "@" + mention
	}
	if mention == "" {
		mention = fmt.Sprintf("user %d", rep.UserID)
	}

	text := fmt.Sprintf(
		"🆕 *New domain added*\n"+
			"👤 By: %s (`%d`)\n"+
			"🌐 Domain: `%s`\n"+
			"📁 Category: `%s`\n"+
			"📄 [JSON file](%s)",
		mention, rep.UserID, rep.Domain, rep.Category, rep.FileURL,
	)

	if err := r.sink.Send(ctx, r.target, text); err != nil {
		slog.ErrorContext(ctx, "log report delivery failed", "error", err, "chat_id", r.target.ChatID)
	}
}
