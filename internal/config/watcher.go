package config

import (
	"context"
	"os"
	"time"

	"github.com/sweeney/dewheater/internal/fault"
	"github.com/sweeney/dewheater/internal/logger"
)

// DefaultPollSlice is how often the config file's mtime is checked while waiting.
const DefaultPollSlice = 5 * time.Second

// WaitResult tells the caller how a Wait ended.
type WaitResult int

const (
	// Elapsed means the full duration passed without a config change.
	Elapsed WaitResult = iota
	// Reloaded means the file changed and the new config is now current.
	Reloaded
	// ReloadFailed means the file changed but did not validate; the previous
	// config is still current.
	ReloadFailed
)

func (r WaitResult) String() string {
	switch r {
	case Reloaded:
		return "reloaded"
	case ReloadFailed:
		return "reload failed"
	default:
		return "elapsed"
	}
}

// Watcher owns the current config snapshot and hot-reloads it when the dew
// heater config file's modification time advances.
type Watcher struct {
	path    string
	slice   time.Duration
	log     *logger.Logger
	current *Config
	modTime time.Time
	lastErr error
}

// NewWatcher loads path and records its modification time. A slice <= 0
// uses DefaultPollSlice.
func NewWatcher(path string, slice time.Duration, log *logger.Logger) (*Watcher, error) {
	if slice <= 0 {
		slice = DefaultPollSlice
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fault.Config("load config", err)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    path,
		slice:   slice,
		log:     log,
		current: cfg,
		modTime: st.ModTime(),
	}, nil
}

// Current returns the active snapshot. It is replaced, never mutated.
func (w *Watcher) Current() *Config {
	return w.current
}

// LastError returns the error of the most recent failed reload, if any.
func (w *Watcher) LastError() error {
	return w.lastErr
}

// Slice returns the poll interval.
func (w *Watcher) Slice() time.Duration {
	return w.slice
}

// Wait blocks for up to d, checking the config file every slice. It returns
// early when the file changed, after attempting a reload. A cancelled ctx
// returns a fault.Interrupted error.
func (w *Watcher) Wait(ctx context.Context, d time.Duration) (WaitResult, error) {
	remaining := d
	for {
		step := min(w.slice, remaining)
		if step > 0 {
			t := time.NewTimer(step)
			select {
			case <-ctx.Done():
				t.Stop()
				return Elapsed, fault.New(fault.Interrupted, "wait", ctx.Err())
			case <-t.C:
			}
			remaining -= step
		}

		if res, changed := w.check(); changed {
			return res, nil
		}
		if remaining <= 0 {
			return Elapsed, nil
		}
	}
}

// check reloads the config if the file's mtime advanced.
func (w *Watcher) check() (WaitResult, bool) {
	st, err := os.Stat(w.path)
	if err != nil {
		w.log.Warnw("stat config file", "path", w.path, "err", err)
		return Elapsed, false
	}
	if !st.ModTime().After(w.modTime) {
		return Elapsed, false
	}
	w.modTime = st.ModTime()

	cfg, err := Load(w.path)
	if err != nil {
		w.lastErr = err
		w.log.Errorw("config reload rejected, keeping previous config", "path", w.path, "err", err)
		return ReloadFailed, true
	}
	w.lastErr = nil
	w.current = cfg
	w.log.Infow("config reloaded", "path", w.path)
	return Reloaded, true
}
