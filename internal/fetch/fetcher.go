// Package fetch retrieves raw contract records from the remote collaborator
// with bounded retries and an audit trail of every attempt.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

var _ service.Source = (*Fetcher)(nil)

// Transport performs a single attempt against the collaborator and returns
// its raw output. Retries, timeouts and decoding belong to the Fetcher.
type Transport interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
	Preview(ctx context.Context, ids []string) ([]byte, error)
}

// Options configures retry behavior.
type Options struct {
	MaxRetries  int
	Timeout     time.Duration
	BackoffBase time.Duration
}

// DefaultOptions returns three attempts, two minutes each, with a one second
// backoff base.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		Timeout:     2 * time.Minute,
		BackoffBase: time.Second,
	}
}

// Fetcher implements service.Source over a Transport.
type Fetcher struct {
	transport Transport
	clock     common.Clock
	audit     *slog.Logger
	logger    *slog.Logger
	opts      Options
}

// New creates a Fetcher. audit receives one record per attempt stage; a nil
// audit logger discards them.
func New(transport Transport, opts Options, clock common.Clock, audit, logger *slog.Logger) *Fetcher {
	defaults := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaults.BackoffBase
	}
	if clock == nil {
		clock = common.RealClock{}
	}
	if audit == nil {
		audit = common.DiscardLogger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		transport: transport,
		opts:      opts,
		clock:     clock,
		audit:     audit,
		logger:    logger,
	}
}

// Fetch retrieves one record. After the last failed attempt it returns a
// *common.FetchError; parse failures are not retried.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*model.RawRecord, error) {
	var rec *model.RawRecord
	err := f.run(ctx, id, "fetch", func(attemptCtx context.Context) error {
		data, err := f.transport.Fetch(attemptCtx, id)
		if err != nil {
			return err
		}
		rec, err = DecodeRecord(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FetchPreview retrieves lightweight previews for a batch of ids.
func (f *Fetcher) FetchPreview(ctx context.Context, ids []string) ([]model.Preview, error) {
	if len(ids) == 0 {
		return []model.Preview{}, nil
	}

	var previews []model.Preview
	batch := strings.Join(ids, ",")
	err := f.run(ctx, batch, "preview", func(attemptCtx context.Context) error {
		data, err := f.transport.Preview(attemptCtx, ids)
		if err != nil {
			return err
		}
		previews, err = DecodePreviews(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return previews, nil
}

func (f *Fetcher) run(ctx context.Context, id, op string, attempt func(context.Context) error) error {
	var lastErr error
	var kind common.FetchKind

	for i := 0; i < f.opts.MaxRetries; i++ {
		if i > 0 {
			delay := common.Backoff(f.opts.BackoffBase, i-1)
			if err := f.clock.Sleep(ctx, delay); err != nil {
				return common.NewFetchError(id, common.FetchNetwork, i, err)
			}
		}

		started := f.clock.Now()
		f.audit.Info(op, "stage", "start", "id", id, "attempt", i)

		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		err := attempt(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		elapsed := f.clock.Now().Sub(started)
		if err == nil {
			f.audit.Info(op, "stage", "ok", "id", id, "attempt", i, "duration_ms", elapsed.Milliseconds())
			return nil
		}

		lastErr = err
		kind = classify(err, timedOut)
		stage := "fail"
		if kind == common.FetchTimeout {
			stage = "timeout"
		}
		f.audit.Info(op, "stage", stage, "id", id, "attempt", i,
			"duration_ms", elapsed.Milliseconds(), "error", err.Error())

		if ctx.Err() != nil {
			return common.NewFetchError(id, kind, i+1, err)
		}
		if kind == common.FetchParse || !retryable(err) {
			return common.NewFetchError(id, kind, i+1, err)
		}

		f.logger.Debug("fetch attempt failed", "id", id, "attempt", i, "error", err)
	}

	f.logger.Warn("fetch failed after retries", "id", id, "attempts", f.opts.MaxRetries, "kind", kind)
	return common.NewFetchError(id, kind, f.opts.MaxRetries, lastErr)
}

// ErrCollaborator marks a collaborator that answered with an error field.
var ErrCollaborator = errors.New("collaborator reported an error")

func classify(err error, timedOut bool) common.FetchKind {
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, ErrUndecodable), errors.Is(err, ErrCollaborator), errors.As(err, &syntaxErr):
		return common.FetchParse
	case timedOut, errors.Is(err, context.DeadlineExceeded):
		return common.FetchTimeout
	default:
		return common.FetchNetwork
	}
}

func retryable(err error) bool {
	var re *common.RetryableError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return true
}

// permanent marks a transport error that a retry cannot fix.
func permanent(err error) error {
	return &common.RetryableError{Err: err, Retryable: false}
}
