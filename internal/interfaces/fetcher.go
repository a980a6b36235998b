package interfaces

import (
	"context"

	"investment-monitor-bot/internal/types"
)

type Fetcher interface {
	FetchNewItems(ctx context.Context) ([]types.NewsItem, error)
}
