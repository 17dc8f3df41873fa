package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/credfab/credfab/pkg/utils/xerrors"
)

// Ref addresses one stored blob by content: "sha256:<hex digest>".
type Ref string

func (r Ref) digest() (string, error) {
	hexDigest, ok := strings.CutPrefix(string(r), "sha256:")
	if !ok || len(hexDigest) != sha256.Size*2 {
		return "", fmt.Errorf("%w: malformed reference %q", ErrNotFound, r)
	}
	return hexDigest, nil
}

func refOf(b []byte) Ref {
	sum := sha256.Sum256(b)
	return Ref("sha256:" + hex.EncodeToString(sum[:]))
}

// ErrNotFound: the reference resolves to nothing in this store.
var ErrNotFound = errors.New("artifact not found")

// Store is a content-addressed blob store for frozen transformer and model
// artifacts. Put of identical bytes yields the same Ref.
type Store interface {
	Put(ctx context.Context, b []byte) (Ref, error)
	Get(ctx context.Context, ref Ref) ([]byte, error)
}

// FileStore keeps blobs under root/objects/<digest>, written to a temp file
// and renamed into place so a crash never leaves a resolvable partial blob.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(digest string) string {
	return filepath.Join(s.root, "objects", digest)
}

func (s *FileStore) Put(ctx context.Context, b []byte) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := refOf(b)
	digest, _ := ref.digest()

	dest := s.path(digest)
	if _, err := os.Stat(dest); err == nil {
		return ref, nil // content-addressed: already stored
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*")
	if err != nil {
		return "", xerrors.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return "", xerrors.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return "", xerrors.Wrap(err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", xerrors.Wrap(err)
	}
	return ref, nil
}

func (s *FileStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, err := ref.digest()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(s.path(digest))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, xerrors.Wrap(err)
	}

	if refOf(b) != ref {
		return nil, fmt.Errorf("%w: %s is corrupt on disk", ErrNotFound, ref)
	}
	return b, nil
}

// MemStore is an in-memory Store for tests and single-process pipelines.
type MemStore struct {
	mu      sync.RWMutex
	objects map[Ref][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{objects: map[Ref][]byte{}}
}

func (s *MemStore) Put(_ context.Context, b []byte) (Ref, error) {
	ref := refOf(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = append([]byte(nil), b...)
	return ref, nil
}

func (s *MemStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return append([]byte(nil), b...), nil
}

// Delete removes a blob; tests use it to simulate partially written bundles.
func (s *MemStore) Delete(ref Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
}
