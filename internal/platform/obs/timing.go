package obs

import (
	"time"

	"github.com/rs/zerolog"
)

// Time logs the duration of an operation when the returned func runs.
// Deferred at the top of a function with a named error return, it records
// both the latency and the outcome:
//
//	defer obs.Time(log, "optimizer.Optimize")(&err)
func Time(log zerolog.Logger, op string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)

		ev := log.Debug()
		if errp != nil && *errp != nil {
			ev = log.Warn().Err(*errp)
		}
		ev.Str("op", op).Dur("dur", dur).Msg("op timed")
	}
}
