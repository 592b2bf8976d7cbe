package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weeklens/internal/config"
)

// watchDebounce batches rapid export rewrites into one run.
const watchDebounce = 2 * time.Second

// watchCmd regenerates the report whenever exports change
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate the report whenever file exports change",
	Long: `Watches the directories of file-kind sources and reruns the report
after changes settle. HTTP sources are fetched fresh on every rerun but
do not trigger one. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	dirs := watchDirs(cfg)
	if len(dirs) == 0 {
		return fmt.Errorf("watch needs at least one file-kind source")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Info("watching for export changes", zap.String("dir", dir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	// First report immediately; afterwards only on changes.
	if err := runReport(cmd, nil); err != nil {
		logger.Error("report run failed", zap.Error(err))
	}

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(watchDebounce)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("export changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			resetTimer()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			if err := runReport(cmd, nil); err != nil {
				logger.Error("report run failed", zap.Error(err))
			}
		}
	}
}

// watchDirs collects the unique directories of file-kind sources.
func watchDirs(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, src := range cfg.Sources {
		if src.Kind != "file" || src.Path == "" {
			continue
		}
		dir := filepath.Clean(src.Path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}
