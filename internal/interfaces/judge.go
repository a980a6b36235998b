package interfaces

import (
	"context"

	"investment-monitor-bot/internal/types"
)

type Judge interface {
	Judge(ctx context.Context, item types.NewsItem) (types.Judgment, error)
}
