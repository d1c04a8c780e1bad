package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"imagestudio/internal/infra"
)

// Sweeper deletes regular files older than MaxAge from a set of flat
// directories. Subdirectories are left alone.
type Sweeper struct {
	Dirs     []string
	MaxAge   time.Duration
	Interval time.Duration
	Logger   *infra.Logger

	now func() time.Time
}

// NewSweeper builds a sweeper. Zero durations default to seven days of
// retention checked once a day.
func NewSweeper(dirs []string, maxAge, interval time.Duration, logger *infra.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		Dirs:     dirs,
		MaxAge:   maxAge,
		Interval: interval,
		Logger:   infra.LoggerOrDiscard(logger),
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logSweep(s.SweepOnce())
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.logSweep(s.SweepOnce())
		}
	}
}

// SweepOnce removes expired files and reports how many were deleted.
// Unreadable directories and files are skipped.
func (s *Sweeper) SweepOnce() (int, error) {
	cutoff := s.clock().Add(-s.MaxAge)
	removed := 0
	var errs []error
	for _, dir := range s.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

func (s *Sweeper) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Sweeper) logSweep(removed int, err error) {
	if err != nil {
		s.Logger.Warn().Err(err).Int("removed", removed).Msg("storage: sweep finished with errors")
		return
	}
	s.Logger.Debug().Int("removed", removed).Dur("max_age", s.MaxAge).Msg("storage: sweep finished")
}
