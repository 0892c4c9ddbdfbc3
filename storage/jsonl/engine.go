package jsonl

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/chatshard/core"
	"golang.org/x/sync/singleflight"
)

// DefaultCompareLimit is the largest existing tail SaveTail compares before
// giving up on the append-only path.
const DefaultCompareLimit = 200

var (
	// ErrInvalidCompareLimit indicates a negative tail compare limit.
	ErrInvalidCompareLimit = errors.New("compare limit cannot be negative")
)

// Engine reads and writes conversations on the local filesystem.
// It is safe for concurrent use on different conversations.
type Engine struct {
	chunkSize    int
	compareLimit int
	logger       *slog.Logger

	indexFlights singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine) error

// WithChunkSize sets the number of records per shard for new shards.
// The value is used as given; callers apply core.ClampChunkSize to configured values.
func WithChunkSize(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", core.ErrInvalidChunkSize, n)
		}
		e.chunkSize = n
		return nil
	}
}

// WithCompareLimit sets how many existing tail records SaveTail compares on the fast path.
func WithCompareLimit(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidCompareLimit, n)
		}
		e.compareLimit = n
		return nil
	}
}

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		chunkSize:    core.DefaultChunkSize,
		compareLimit: DefaultCompareLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ChunkSize returns the shard size used for new shards.
func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// CompareLimit returns the fast-path tail compare limit.
func (e *Engine) CompareLimit() int {
	return e.compareLimit
}
