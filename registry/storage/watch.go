package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ocireg/registry/internal/dcontext"
)

// WatchScratch watches the upload manager's scratch directory and aborts
// any in-memory session whose backing file disappears out from under it
// (an operator cleaning up disk space, a failed filesystem, or anything
// else external to a normal PATCH/PUT/DELETE flow). This mirrors the
// teacher's use of fsnotify in registry/storage/blobwriter.go, which
// watches a scratch file to notice new bytes; here the manager watches
// the whole directory to notice removals, keeping the session table
// consistent with what is actually on disk (spec §4.3 "Durability
// policy").
//
// The returned function stops the watcher. Errors starting the watcher
// are logged and watching is skipped; a missing watcher only means stale
// sessions are caught by the TTL sweep instead of immediately.
func (m *UploadManager) WatchScratch(ctx context.Context) (stop func(), err error) {
	scratchDir, err := pathFor(m.root, uploadScratchPathSpec{id: "."})
	if err != nil {
		return func() {}, err
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return func() {}, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}, err
	}
	if err := watcher.Add(scratchDir); err != nil {
		_ = watcher.Close()
		return func() {}, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				id := filepath.Base(ev.Name)
				m.mu.RLock()
				s, tracked := m.sessions[id]
				m.mu.RUnlock()
				if !tracked {
					continue
				}
				s.mu.Lock()
				alreadyTerminal := s.state != stateOpen
				s.mu.Unlock()
				if alreadyTerminal {
					continue
				}
				dcontext.GetLogger(ctx).WithField("upload.id", id).
					Warn("scratch file removed externally, aborting session")
				_ = m.Abort(ctx, id)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				dcontext.GetLogger(ctx).Warnf("scratch watcher error: %v", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
