// Package retry runs worker calls with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jobhunter-labs/jobhunter/internal/template"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
)

type Operation func(ctx context.Context) error

type Config struct {
	Attempts      int
	Delay         time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
	OnError       bool
	StageName     string
}

// Helper executes Operations according to a Config. Errors logged between
// attempts are passed through keyword redaction first.
type Helper struct {
	log              jhlog.Logger
	mu               sync.Mutex
	randSource       *rand.Rand
	redactedKeywords map[string]struct{}
}

func NewHelper(log jhlog.Logger) *Helper {
	if log == nil {
		panic("retry.NewHelper requires a non-nil logger")
	}
	return &Helper{
		log:              log,
		randSource:       rand.New(rand.NewSource(time.Now().UnixNano())),
		redactedKeywords: template.DefaultRedactedKeywords,
	}
}

func (h *Helper) SetRedactedKeywords(keywords map[string]struct{}) {
	h.redactedKeywords = keywords
}

// Do runs op until it succeeds, the attempts are exhausted or ctx is done.
// It returns the last error of op; attempts counts the calls made.
func (h *Helper) Do(ctx context.Context, cfg Config, op Operation) (attempts int, err error) {
	cfg = normalize(cfg)

	var lastErr error
	logPrefix := ""
	if cfg.StageName != "" {
		logPrefix = fmt.Sprintf("stage=%s ", cfg.StageName)
	}

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			h.log.Warnf("%sRetry attempt %d/%d cancelled before start: %v", logPrefix, attempt, cfg.Attempts, ctx.Err())
			if lastErr == nil {
				return attempt - 1, ctx.Err()
			}
			return attempt - 1, fmt.Errorf("retry cancelled after %d attempts with last error: %w (context: %w)",
				attempt-1, h.redact(lastErr), ctx.Err())
		default:
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				h.log.Infof("%sOperation succeeded on attempt %d/%d", logPrefix, attempt, cfg.Attempts)
			}
			return attempt, nil
		}

		if attempt == cfg.Attempts || !cfg.OnError {
			attempts = attempt
			break
		}

		wait := h.backoff(cfg, attempt)
		h.log.Warnf("%sOperation failed on attempt %d/%d (retrying in %v): %v",
			logPrefix, attempt, cfg.Attempts, wait.Truncate(time.Millisecond), h.redact(lastErr))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			h.log.Warnf("%sRetry delay for attempt %d/%d cancelled: %v", logPrefix, attempt+1, cfg.Attempts, ctx.Err())
			return attempt, fmt.Errorf("retry delay cancelled after attempt %d with error: %w (context: %w)",
				attempt, h.redact(lastErr), ctx.Err())
		}
	}

	if lastErr != nil {
		if cfg.Attempts > 1 {
			h.log.Errorf("%sOperation failed definitively after %d attempts: %v", logPrefix, attempts, h.redact(lastErr))
		}
		return attempts, lastErr
	}
	return attempts, jherrors.NewConfigError("retry loop finished unexpectedly without success or error", nil)
}

func normalize(cfg Config) Config {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.BackoffFactor < 1.0 {
		cfg.BackoffFactor = 1.0
	}
	if cfg.Jitter < 0.0 {
		cfg.Jitter = 0.0
	} else if cfg.Jitter > 1.0 {
		cfg.Jitter = 1.0
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	return cfg
}

// backoff computes the wait after the given failed attempt.
func (h *Helper) backoff(cfg Config, attempt int) time.Duration {
	base := float64(cfg.Delay)
	if cfg.BackoffFactor > 1.0 {
		base *= math.Pow(cfg.BackoffFactor, float64(attempt-1))
	}
	if base > float64(math.MaxInt64) {
		base = float64(math.MaxInt64)
	}
	wait := time.Duration(base)

	if cfg.Jitter > 0.0 {
		h.mu.Lock()
		factor := cfg.Jitter * (h.randSource.Float64()*2.0 - 1.0)
		h.mu.Unlock()
		wait += time.Duration(float64(wait) * factor)
		if wait < 0 {
			wait = 0
		}
	}
	if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
		wait = cfg.MaxDelay
	}
	return wait
}

func (h *Helper) redact(err error) error {
	return template.RedactSecretsInError(err, h.redactedKeywords)
}
