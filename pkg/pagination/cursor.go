package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPageLimit is returned by Drain when MaxPages steps ran without completion.
var ErrPageLimit = errors.New("page limit reached")

// Cursor is the offset/limit position of a paginated listing.
type Cursor struct {
	Offset   int
	PageSize int
	Total    int

	observed bool
}

// NewCursor creates a cursor at offset with a fixed page size.
func NewCursor(offset, pageSize int) (*Cursor, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be > 0 (got %d)", pageSize)
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0 (got %d)", offset)
	}
	return &Cursor{Offset: offset, PageSize: pageSize}, nil
}

// Advance moves the offset forward by one page and returns the new offset.
func (c *Cursor) Advance() int {
	c.Offset += c.PageSize
	return c.Offset
}

// Observe records the server-reported total. Negative values count as 0.
func (c *Cursor) Observe(total int) {
	if total < 0 {
		total = 0
	}
	c.Total = total
	c.observed = true
}

// Observed reports whether a total was recorded yet.
func (c *Cursor) Observed() bool {
	return c.observed
}

// Exhausted reports whether the offset reached the recorded total. A cursor
// that never saw a total is not exhausted.
func (c *Cursor) Exhausted() bool {
	return c.observed && c.Offset >= c.Total
}

// Remaining returns how many records are left past the offset, 0 if unknown.
func (c *Cursor) Remaining() int {
	if !c.observed || c.Offset >= c.Total {
		return 0
	}
	return c.Total - c.Offset
}

// Progress is what a single Drain step reports.
type Progress struct {
	Offset int
	Total  int
	Done   bool
}

// StepFunc performs one page fetch.
type StepFunc func(ctx context.Context) (Progress, error)

// Config holds Drain configuration.
type Config struct {
	// MaxPages bounds the number of steps. 0 means no bound.
	MaxPages int

	// Timeout per step. 0 means the parent context alone applies.
	Timeout time.Duration

	// LogEvery logs progress every n steps.
	LogEvery int
}

// DefaultConfig returns a configuration suitable for interactive use.
func DefaultConfig() Config {
	return Config{
		MaxPages: 1000,
		Timeout:  30 * time.Second,
		LogEvery: 10,
	}
}

// Drain calls step until it reports Done, returns an error, the context ends
// or MaxPages steps ran. It returns the number of successful steps.
func Drain(ctx context.Context, cfg Config, step StepFunc) (int, error) {
	start := time.Now()
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if cfg.MaxPages > 0 && steps >= cfg.MaxPages {
			log.Warn().
				Int("pages", steps).
				Msg("Stopping drain at page limit")
			return steps, fmt.Errorf("%w: %d", ErrPageLimit, cfg.MaxPages)
		}

		stepCtx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		p, err := step(stepCtx)
		cancel()
		if err != nil {
			return steps, err
		}
		steps++

		if cfg.LogEvery > 0 && steps%cfg.LogEvery == 0 {
			ev := log.Info().
				Int("pages", steps).
				Int("offset", p.Offset).
				Int("total", p.Total)
			if p.Total > 0 {
				ev = ev.Float64("progress_pct", float64(p.Offset)/float64(p.Total)*100)
			}
			ev.Msg("Drain progress")
		}

		if p.Done {
			log.Debug().
				Int("pages", steps).
				Int("total", p.Total).
				Dur("duration", time.Since(start)).
				Msg("Drain complete")
			return steps, nil
		}
	}
}
