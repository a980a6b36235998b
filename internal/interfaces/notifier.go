package interfaces

import (
	"context"

	"investment-monitor-bot/internal/types"
)

type Notifier interface {
	Notify(ctx context.Context, j types.Judgment) error
	SendMessage(ctx context.Context, content string) error
}
