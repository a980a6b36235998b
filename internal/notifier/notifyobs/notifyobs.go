package notifyobs

import (
	"context"

	"investment-monitor-bot/internal/interfaces"
	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/trace"
	"investment-monitor-bot/internal/types"
)

// observableNotifier wraps a Notifier with observability (logging & tracing)
type observableNotifier struct {
	notifier interfaces.Notifier
}

// Compile-time interface check
var _ interfaces.Notifier = (*observableNotifier)(nil)

// Wrap wraps a notifier with observability middleware
func Wrap(notifier interfaces.Notifier) interfaces.Notifier {
	return &observableNotifier{notifier: notifier}
}

func (on *observableNotifier) Notify(ctx context.Context, j types.Judgment) error {
	ctx, span := trace.StartSpan(ctx, "notifier.Notify")
	defer span.End()

	err := on.notifier.Notify(ctx, j)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Notification failed", err,
			"item_id", j.Item.ID,
			"verdict", string(j.Verdict),
		)
		return err
	}

	logger.InfoSkip(ctx, 1, "Notification sent",
		"item_id", j.Item.ID,
		"verdict", string(j.Verdict),
		"title", j.Item.Title,
	)
	return nil
}

func (on *observableNotifier) SendMessage(ctx context.Context, content string) error {
	ctx, span := trace.StartSpan(ctx, "notifier.SendMessage")
	defer span.End()

	return on.notifier.SendMessage(ctx, content)
}
