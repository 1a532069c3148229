package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/witness/internal/logging"
)

// checkRetry retries transport failures and 5xx responses. Cancellation,
// deadlines and redirect limits are final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, errTooManyRedirects) {
			return false, err
		}
		return true, nil
	}
	return resp.StatusCode >= http.StatusInternalServerError, nil
}

// exponentialBackoff waits base·2^attempt, capped at ceiling.
func exponentialBackoff(base, ceiling time.Duration, attempt int, _ *http.Response) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return ceiling
	}
	wait := base * time.Duration(1<<attempt)
	if wait > ceiling || wait <= 0 {
		return ceiling
	}
	return wait
}

// retryLogger adapts the zerolog wrapper to retryablehttp.LeveledLogger.
type retryLogger struct {
	log *logging.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) {
	l.log.Error().Fields(flatten(kv)).Msg(msg)
}

func (l retryLogger) Info(msg string, kv ...interface{}) {
	l.log.Info().Fields(flatten(kv)).Msg(msg)
}

func (l retryLogger) Debug(msg string, kv ...interface{}) {
	l.log.Debug().Fields(flatten(kv)).Msg(msg)
}

func (l retryLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warn().Fields(flatten(kv)).Msg(msg)
}

// flatten renders values zerolog cannot encode as JSON as strings.
func flatten(kv []interface{}) []interface{} {
	out := make([]interface{}, len(kv))
	for i, v := range kv {
		switch t := v.(type) {
		case error:
			out[i] = t.Error()
		case *http.Request:
			out[i] = t.Method + " " + t.URL.String()
		case fmt.Stringer:
			out[i] = t.String()
		default:
			out[i] = v
		}
	}
	return out
}
