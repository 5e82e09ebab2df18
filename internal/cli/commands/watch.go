package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces bursts of filesystem events into one run.
const watchDebounce = 500 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-translate models on definition changes",
		Long: `Watch the models directory and re-run translation whenever a
definition file changes. Stops on interrupt.`,
		RunE: runWatch,
	}
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the models directory and every subdirectory.
	err = filepath.WalkDir(cc.Cfg.ModelsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch models directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce := func() {
		if _, err := cc.Engine.Discover(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "discovery failed: %v\n", err)
			return
		}
		result, err := cc.Engine.Run(ctx, cc.Cfg.Environment)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Translated %d models (%d failed)\n",
			len(result.Translated), len(result.ModelErrors))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", cc.Cfg.ModelsDir)
	runOnce()

	var debounce *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isYAMLFile(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-pending:
			runOnce()
		}
	}
}

func isYAMLFile(path string) bool {
	return strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")
}
