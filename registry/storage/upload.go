package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/digestengine"
	"github.com/ocireg/registry/internal/dcontext"
	internaluuid "github.com/ocireg/registry/internal/uuid"
	"github.com/opencontainers/go-digest"
)

// uploadState is the blob upload session state machine (spec §4.3).
type uploadState int

const (
	stateOpen uploadState = iota
	stateFinalizing
	stateCommitted
	stateAborted
)

// DefaultUploadTTL is the idle time after which an open session is swept
// and aborted by the housekeeping sweep (spec §4.3 "default 1 hour").
const DefaultUploadTTL = time.Hour

// session is the concrete C3 state for one in-progress blob upload: a
// scratch file, a running digest, and an offset, guarded by a per-session
// lock so concurrent patches on the *same* session serialize while
// patches on different sessions proceed in parallel (spec §5).
type session struct {
	mu sync.Mutex

	id           string
	repository   string
	root         string
	scratchPath  string
	startedAt    time.Time
	lastActivity time.Time

	file   *os.File
	hasher *digestengine.Hasher
	offset int64
	state  uploadState
}

var _ registry.BlobUploadSession = (*session)(nil)

func (s *session) ID() string           { return s.id }
func (s *session) StartedAt() time.Time { return s.startedAt }

func (s *session) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Write appends p to the scratch file and the running digest (spec §4.3
// patch). Callers that need an explicit offset check (the HTTP PATCH
// Content-Range contract) should use the UploadManager.Patch entry point,
// which validates range_start before delegating here.
func (s *session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return 0, registry.ErrUploadClosed{ID: s.id}
	}

	n, err := s.file.Write(p)
	if n > 0 {
		s.hasher.Update(p[:n])
		s.offset += int64(n)
		s.lastActivity = time.Now()
	}
	return n, err
}

func (s *session) ReadFrom(r io.Reader) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return 0, registry.ErrUploadClosed{ID: s.id}
	}

	tee := io.TeeReader(r, hashWriter{s.hasher})
	n, err := io.Copy(s.file, tee)
	s.offset += n
	s.lastActivity = time.Now()
	return n, err
}

// hashWriter adapts a digestengine.Hasher to io.Writer so it can sit on
// the read side of a TeeReader (mirrors the teacher's use of
// io.TeeReader(r, bw.fileWriter) in blobwriter.go's ReadFrom).
type hashWriter struct{ h *digestengine.Hasher }

func (hw hashWriter) Write(p []byte) (int, error) {
	hw.h.Update(p)
	return len(p), nil
}

// Commit verifies the accumulated bytes hash to desc.Digest and, on
// success, moves the scratch file into the blob store (spec §4.3
// finalize). On any failure the session transitions to Aborted and the
// scratch file is removed.
func (s *session) Commit(ctx context.Context, desc registry.Descriptor) (registry.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return registry.Descriptor{}, registry.ErrUploadClosed{ID: s.id}
	}
	s.state = stateFinalizing

	if err := s.file.Close(); err != nil {
		s.state = stateAborted
		_ = os.Remove(s.scratchPath)
		return registry.Descriptor{}, fmt.Errorf("storage: close upload scratch file: %w", err)
	}

	actual := s.hasher.Finalize()
	if desc.Digest != "" && actual != desc.Digest {
		s.state = stateAborted
		_ = os.Remove(s.scratchPath)
		return registry.Descriptor{}, registry.ErrBlobInvalidDigest{Claimed: desc.Digest, Computed: actual}
	}

	bs := newBlobStore(s.root, s.repository)
	if err := bs.commit(actual, s.scratchPath); err != nil {
		s.state = stateAborted
		_ = os.Remove(s.scratchPath)
		return registry.Descriptor{}, err
	}

	s.state = stateCommitted
	desc.Digest = actual
	if desc.Size == 0 {
		desc.Size = s.offset
	}
	if desc.MediaType == "" {
		desc.MediaType = "application/octet-stream"
	}
	dcontext.GetLogger(ctx).
		WithField("upload.id", s.id).
		WithField("digest", actual).
		Debug("blob committed")
	return desc, nil
}

// Cancel discards the session's scratch file. Idempotent (spec §4.3
// abort).
func (s *session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

func (s *session) cancelLocked() error {
	if s.state == stateCommitted || s.state == stateAborted {
		return nil
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	if err := os.Remove(s.scratchPath); err != nil && !os.IsNotExist(err) {
		s.state = stateAborted
		return err
	}
	s.state = stateAborted
	return nil
}

// UploadManager implements C3: it owns the process-wide session table and
// the scratch directory, and is the sole component that allocates upload
// UUIDs (spec §4.3, §5 "Session table").
type UploadManager struct {
	root string
	ttl  time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	stop chan struct{}
}

// withRoot stashes the storage root on the session so Commit can build a
// blobStore without threading the manager through every call.
func (s *session) withRoot(root string) *session {
	s.root = root
	return s
}

// NewUploadManager creates an upload manager rooted at root, sweeping
// sessions idle longer than ttl (spec §4.3 "Background housekeeping"). A
// ttl of zero selects DefaultUploadTTL.
func NewUploadManager(root string, ttl time.Duration) *UploadManager {
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}
	m := &UploadManager{
		root:     root,
		ttl:      ttl,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
	}
	return m
}

// Begin allocates a fresh UUID, an empty scratch file, and a fresh
// hasher, and registers the session (spec §4.3 begin_upload). Concurrent
// Begin calls always return distinct UUIDs (spec §8 invariant 6): UUIDv7
// allocation does not depend on any process state contended between
// callers.
func (m *UploadManager) Begin(ctx context.Context, repository string) (*session, error) {
	id := internaluuid.NewString()

	scratchPath, err := pathFor(m.root, uploadScratchPathSpec{id: id})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(scratchPath), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create scratch directory: %w", err)
	}

	f, err := os.OpenFile(scratchPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: create scratch file: %w", err)
	}

	now := time.Now()
	s := &session{
		id:           id,
		repository:   repository,
		scratchPath:  scratchPath,
		startedAt:    now,
		lastActivity: now,
		file:         f,
		hasher:       digestengine.NewHasher(),
		state:        stateOpen,
	}
	s.withRoot(m.root)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	dcontext.GetLogger(ctx).WithField("upload.id", id).WithField("repository", repository).Debug("upload session created")
	return s, nil
}

// Get looks up a session by id (spec §4.3 status).
func (m *UploadManager) Get(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, registry.ErrUploadUnknown{ID: id}
	}
	return s, nil
}

// Patch validates an optional expected-start offset before appending
// bytes, returning ErrUploadConflict on an out-of-order chunk (spec §4.3
// patch). A rejected patch does not alter session state (spec §8
// invariant 7): the check happens before any byte is written, and the
// check and the append run under one hold of the session lock.
func (m *UploadManager) Patch(ctx context.Context, id string, r io.Reader, expectedStart *int64) (int64, error) {
	s, err := m.Get(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return 0, registry.ErrUploadClosed{ID: id}
	}
	if expectedStart != nil && *expectedStart != s.offset {
		return 0, registry.ErrUploadConflict{Expected: s.offset, Provided: *expectedStart}
	}

	tee := io.TeeReader(r, hashWriter{s.hasher})
	n, err := io.Copy(s.file, tee)
	s.offset += n
	s.lastActivity = time.Now()
	if err != nil {
		return 0, err
	}
	return s.offset, nil
}

// Finalize applies any trailing bytes, then verifies and commits (spec
// §4.3 finalize). Once the commit has been attempted the session is
// removed from the table, whether the commit succeeded or failed.
func (m *UploadManager) Finalize(ctx context.Context, id string, claimed digest.Digest, trailing io.Reader) (registry.Descriptor, error) {
	s, err := m.Get(id)
	if err != nil {
		return registry.Descriptor{}, err
	}

	if trailing != nil {
		if _, err := m.Patch(ctx, id, trailing, nil); err != nil {
			return registry.Descriptor{}, err
		}
	}

	desc, err := s.Commit(ctx, registry.Descriptor{Digest: claimed})

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err != nil {
		return registry.Descriptor{}, err
	}
	return desc, nil
}

// Abort cancels a session and removes it from the table (spec §4.3
// abort). Idempotent.
func (m *UploadManager) Abort(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return nil
	}
	err = s.Cancel(ctx)

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	return err
}

// Status returns the current offset and repository for id (spec §4.3
// status).
func (m *UploadManager) Status(id string) (int64, string, error) {
	s, err := m.Get(id)
	if err != nil {
		return 0, "", err
	}
	return s.Size(), s.repository, nil
}

// StartSweeper runs the idle-session housekeeping loop until Stop is
// called (spec §4.3 "Background housekeeping"). It is typically started
// once by the facade at process start.
func (m *UploadManager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep(ctx)
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the sweeper goroutine started by StartSweeper.
func (m *UploadManager) Stop() {
	close(m.stop)
}

func (m *UploadManager) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActivity.Before(cutoff)
		s.mu.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if err := m.Abort(ctx, id); err != nil {
			dcontext.GetLogger(ctx).WithField("upload.id", id).Warnf("sweep: abort failed: %v", err)
		} else {
			dcontext.GetLogger(ctx).WithField("upload.id", id).Info("swept idle upload session")
		}
	}
}
