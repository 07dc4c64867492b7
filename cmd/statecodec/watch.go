package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/reoring/statecodec/internal/config"
)

func watchCmd(args []string) {
	cfg, log := setup("watch", args, true)
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := generateAll(ctx, cfg, cfg.Dirs, log); err != nil {
		log.Error("initial generation failed", zap.Error(err))
	}
	if err := watch(ctx, cfg, log); err != nil {
		fatalf("watch: %v", err)
	}
}

// watch regenerates a directory after its Go sources change, waiting for
// cfg.Watch.Debounce of quiet first. It returns when ctx is done.
func watch(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range cfg.Dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
		log.Info("watching for changes", zap.String("dir", dir))
	}

	pending := map[string]bool{}
	timer := time.NewTimer(cfg.Watch.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !triggers(event, cfg.Output) {
				continue
			}
			log.Debug("source changed",
				zap.String("event", event.Op.String()),
				zap.String("file", event.Name),
			)
			pending[filepath.Dir(event.Name)] = true
			timer.Reset(cfg.Watch.Debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("file watcher error", zap.Error(err))

		case <-timer.C:
			dirs := slices.Sorted(maps.Keys(pending))
			clear(pending)
			if err := generateAll(ctx, cfg, dirs, log); err != nil {
				log.Error("regeneration failed", zap.Error(err))
			}
		}
	}
}

// triggers reports whether event touches a non-test Go source other than
// the generated output.
func triggers(event fsnotify.Event, output string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if base == output || !strings.HasSuffix(base, ".go") || strings.HasSuffix(base, "_test.go") {
		return false
	}
	return true
}
