package relay

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchPoll is the fallback re-read interval of a StoreWatcher, for
// filesystems that drop change events.
const DefaultWatchPoll = 5 * time.Second

// Syncer re-reads the stored flag. *Relay implements it.
type Syncer interface {
	Sync(origin string) (bool, error)
}

// WatchConfig configures a StoreWatcher.
type WatchConfig struct {
	// Path is the settings database file.
	Path   string
	Target Syncer
	Poll   time.Duration
	Clock  clock.Clock
	Logger zerolog.Logger
}

// StoreWatcher notices writes made to the shared database by other
// processes and has its target re-read the flag. It needs no broker: any
// process writing through the store is observed.
type StoreWatcher struct {
	base   string
	origin string
	target Syncer
	logger zerolog.Logger

	fs     *fsnotify.Watcher
	ticker *clock.Ticker
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// WatchStore starts watching the directory holding cfg.Path.
func WatchStore(cfg WatchConfig) (*StoreWatcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.Target == nil {
		return nil, errors.New("watch target is required")
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultWatchPoll
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create store watcher: %w", err)
	}
	// sqlite replaces its -wal and -journal files, so the directory is
	// watched rather than the files themselves.
	if err := fs.Add(filepath.Dir(cfg.Path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(cfg.Path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &StoreWatcher{
		base:   filepath.Base(cfg.Path),
		origin: "store:" + cfg.Path,
		target: cfg.Target,
		logger: cfg.Logger.With().Str("component", "store-watch").Logger(),
		fs:     fs,
		ticker: cfg.Clock.Ticker(cfg.Poll),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx)

	w.logger.Debug().Str("path", cfg.Path).Msg("watching settings store")
	return w, nil
}

// Close stops the watcher and waits for it to exit.
func (w *StoreWatcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (w *StoreWatcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.sync()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("store watch error")
		case <-w.ticker.C:
			w.sync()
		}
	}
}

// relevant reports whether ev touched the database or one of its sqlite
// side files.
func (w *StoreWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(ev.Name)
	return name == w.base || strings.HasPrefix(name, w.base+"-")
}

func (w *StoreWatcher) sync() {
	if _, err := w.target.Sync(w.origin); err != nil {
		w.logger.Warn().Err(err).Msg("failed to re-read settings store")
	}
}
