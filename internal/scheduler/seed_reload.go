package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/storyshelf/internal/bookmark"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/sources/seed"
)

const defaultDebounce = 200 * time.Millisecond

// SeedReloader adds the seed file's bookmarks to the store on start, on
// every change of the file, on a timer and on manual trigger. Seeding never
// overwrites a stored bookmark, and an entry is offered once per process so
// a bookmark the user removed is not brought back by the next reload.
type SeedReloader struct {
	loader        *seed.Loader
	store         *bookmark.Store
	logger        logger.Logger
	interval      time.Duration // 0 disables the timer
	debounce      time.Duration
	manualTrigger chan struct{}

	mu      sync.Mutex // serializes Reload
	offered map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewSeedReloader creates a new seed reloader
func NewSeedReloader(
	seedFile string,
	store *bookmark.Store,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		store:         store,
		logger:        log,
		interval:      interval,
		debounce:      defaultDebounce,
		manualTrigger: manualTrigger,
		offered:       make(map[string]bool),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start seeds once, then keeps watching in the background
func (sr *SeedReloader) Start(ctx context.Context) error {
	if _, err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial seed failed: %w", err)
	}

	watcher, err := sr.watch()
	if err != nil {
		sr.logger.Warn("seed file watch unavailable, relying on timer and manual trigger",
			logger.String("file", sr.loader.Path()),
			logger.Error(err))
	}

	go sr.loop(ctx, watcher)
	return nil
}

// Stop stops the reloader and waits for the loop to exit
func (sr *SeedReloader) Stop() {
	sr.once.Do(func() { close(sr.stopCh) })
	<-sr.doneCh
}

// Reload adds the seed bookmarks not offered before and returns how many
// were written
func (sr *SeedReloader) Reload(ctx context.Context) (int, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	f, err := sr.loader.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load seed: %w", err)
	}
	bookmarks, err := seed.MapBookmarks(f)
	if err != nil {
		return 0, fmt.Errorf("failed to map seed: %w", err)
	}

	added := 0
	for _, b := range bookmarks {
		if sr.offered[b.ID] {
			continue
		}
		ok, err := sr.store.Add(ctx, b)
		if err != nil {
			return added, fmt.Errorf("failed to add seed bookmark %s: %w", b.ID, err)
		}
		sr.offered[b.ID] = true
		if ok {
			added++
		}
	}

	sr.logger.Info("seed bookmarks applied",
		logger.Int("entries", len(bookmarks)),
		logger.Int("added", added))
	return added, nil
}

// watch watches the seed file's directory, so editors that replace the
// file are seen too
func (sr *SeedReloader) watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(sr.loader.Path())); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return watcher, nil
}

func (sr *SeedReloader) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(sr.doneCh)

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher != nil {
		defer watcher.Close()
		events = watcher.Events
		errs = watcher.Errors
	}

	var tick <-chan time.Time
	if sr.interval > 0 {
		ticker := time.NewTicker(sr.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	debounce := time.NewTimer(sr.debounce)
	debounce.Stop()
	defer debounce.Stop()

	name := filepath.Base(sr.loader.Path())
	reload := func(reason string) {
		sr.logger.Debug("seed reload", logger.String("reason", reason))
		if _, err := sr.Reload(ctx); err != nil {
			sr.logger.Error("failed to reload seed", logger.Error(err))
		}
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(sr.debounce)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			sr.logger.Warn("seed watcher error", logger.Error(err))
		case <-debounce.C:
			reload("file changed")
		case <-tick:
			reload("interval")
		case <-sr.manualTrigger:
			sr.logger.Info("manual seed reload triggered")
			reload("manual")
		case <-sr.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
