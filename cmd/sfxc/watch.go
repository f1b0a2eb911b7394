package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-sfx/common"
	"github.com/Carmen-Shannon/oxy-sfx/engine/config"
	"github.com/Carmen-Shannon/oxy-sfx/engine/sfx"
	"github.com/fsnotify/fsnotify"
)

// settleDelay groups the events of one editor save into one rebuild.
const settleDelay = 150 * time.Millisecond

// watch rebuilds whenever a file of the last build changes, until ctx is done. Directories are
// watched rather than files so editors that save by rename keep being followed.
func watch(ctx context.Context, c sfx.Compiler, cfg *config.Config, opts options, stdout, stderr io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	track := func(paths []string) {
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				continue
			}
			files[abs] = true
			dir := filepath.Dir(abs)
			if dirs[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				common.Logger().Warn("sfxc: cannot watch directory", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = true
		}
	}
	rebuild := func() {
		e, err := buildOnce(c, cfg, opts, stdout, stderr)
		if err != nil && !errors.Is(err, errBuildFailed) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		if e != nil {
			track(e.Files())
		}
	}

	track(cfg.Files)
	rebuild()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[event.Name] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			common.Logger().Debug("sfxc: change", "file", event.Name, "op", event.Op)
			settle = time.After(settleDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			common.Logger().Warn("sfxc: watcher error", "error", err)
		case <-settle:
			settle = nil
			rebuild()
		}
	}
}
