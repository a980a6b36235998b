package judgeobs

import (
	"context"

	"investment-monitor-bot/internal/interfaces"
	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/trace"
	"investment-monitor-bot/internal/types"
)

// observableJudge wraps a Judge with observability (logging & tracing)
type observableJudge struct {
	judge interfaces.Judge
}

// Compile-time interface check
var _ interfaces.Judge = (*observableJudge)(nil)

// Wrap wraps a judge with observability middleware
func Wrap(judge interfaces.Judge) interfaces.Judge {
	return &observableJudge{judge: judge}
}

// Judge requests a verdict with observability
func (oj *observableJudge) Judge(ctx context.Context, item types.NewsItem) (types.Judgment, error) {
	ctx, span := trace.StartSpan(ctx, "judge.Judge")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting judgment",
		"item_id", item.ID,
		"title", item.Title,
		"category", string(item.Category),
	)

	judgment, err := oj.judge.Judge(ctx, item)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get judgment", err,
			"item_id", item.ID,
			"title", item.Title,
		)
		return types.Judgment{}, err
	}

	logger.Judgment(ctx, item.ID, item.Title,
		string(judgment.Verdict), string(judgment.Timeframe), judgment.Reason)

	return judgment, nil
}
