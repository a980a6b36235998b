// Package noop provides a judge that never consults an API. Used in DRY_RUN
// mode and in tests.
package noop

import (
	"context"

	"investment-monitor-bot/internal/types"
)

type Judge struct{}

func New() *Judge { return &Judge{} }

// Judge always returns WAIT: monitoring only, no signals.
func (j *Judge) Judge(_ context.Context, item types.NewsItem) (types.Judgment, error) {
	return types.Judgment{
		Verdict:   types.VerdictWait,
		Timeframe: types.TimeframeMidLong,
		Reason:    "noop judge: monitoring only",
		Item:      item,
	}, nil
}
