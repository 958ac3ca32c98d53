package cli

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit for one save.
const DefaultDebounce = 150 * time.Millisecond

// RunWatch refines the brief and refines it again every time the file changes,
// cancelling a run still in flight. It returns when ctx is done.
func RunWatch(ctx context.Context, app *App, opts RunOptions, w io.Writer) error {
	path, err := filepath.Abs(opts.BriefPath)
	if err != nil {
		return err
	}
	// Scoped by path so projects do not share a session.
	if opts.SessionID == "" {
		hash := md5.Sum([]byte(path))
		opts.SessionID = fmt.Sprintf("watch-%x", hash[:4])
	}

	reload, err := watchFile(ctx, path, DefaultDebounce)
	if err != nil {
		return err
	}
	app.Logger.Info("Starting Watcher", "path", path, "session_id", opts.SessionID)
	printSystemMessage(w, "Watching '%s' as session '%s'.", opts.BriefPath, opts.SessionID)

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, err := RunOnce(runCtx, app, opts)
			if runCtx.Err() != nil {
				return
			}
			if err != nil {
				app.Logger.Error("Refinement failed", "err", err)
			}
			_ = report(w, app, opts, res, err)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case <-reload:
			cancel()
			<-done
		case <-done:
			printSystemMessage(w, "Waiting for changes...")
			select {
			case <-ctx.Done():
				cancel()
				return nil
			case <-reload:
				cancel()
			}
		}
		printSystemMessage(w, "Change detected in '%s'.", opts.BriefPath)
	}
}

// watchFile signals on the returned channel after path was written or replaced.
// The parent directory is watched so that editors saving through a rename are seen.
func watchFile(ctx context.Context, path string, debounce time.Duration) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	out := make(chan struct{}, 1)
	notify := func() {
		select {
		case out <- struct{}{}:
		default:
		}
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(debounce, notify)
				} else {
					timer.Reset(debounce)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}
