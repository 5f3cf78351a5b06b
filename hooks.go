package chorechart

import (
	"context"
	"time"

	"github.com/Rorschach3/chore-chart/internal/logging"
	"github.com/Rorschach3/chore-chart/internal/metrics"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
)

const requestLogWriteTimeout = 5 * time.Second

// RequestLogHook returns a hook that persists every event to w.
func RequestLogHook(w requestlog.Writer) EventHookFunc {
	return func(ctx context.Context, ev Event) {
		ctx, cancel := context.WithTimeout(ctx, requestLogWriteTimeout)
		defer cancel()
		if err := w.Write(ctx, EntryFromEvent(ev)); err != nil {
			metrics.RequestLogWriteErrors.Inc()
			logging.FromContext(ctx).Warn("request log write failed", "error", err.Error())
		}
	}
}

// EntryFromEvent converts an Event to a request log entry.
func EntryFromEvent(ev Event) requestlog.Entry {
	e := requestlog.Entry{
		TraceID:    ev.TraceID,
		Outcome:    ev.Outcome.String(),
		Reason:     string(ev.Reason),
		Backend:    ev.Backend,
		CacheHit:   ev.CacheHit,
		PromptHash: ev.PromptHash,
		LatencyMS:  ev.Latency.Milliseconds(),
		CreatedAt:  ev.At,
	}
	if ev.Err != nil {
		e.ErrorMessage = ev.Err.Error()
	}
	return e
}
