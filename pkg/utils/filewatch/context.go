package filewatch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext returns a context that is canceled when the target file
// is modified (= written, created, removed, or renamed).
//
// The watch is registered on the parent directory and filtered by file name,
// not on the file itself. Files replaced atomically (write to a temp file,
// then rename over the target) get a new inode on every update; a watch on
// the old inode would fire once and then go blind. Bundle manifests are
// published exactly that way.
//
// Returns the derived context, its cancel function, and an error when the
// watch cannot be established. If error is not nil, both the context and the
// cancel function are nil.
func UntilModifyContext(ctx context.Context, targetFilePath string) (context.Context, func(), error) {
	cctx, cancel := context.WithCancelCause(ctx)

	dir := filepath.Dir(targetFilePath)
	name := filepath.Base(targetFilePath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
			}
		}
	}()

	if err := w.Add(dir); err != nil {
		cancel(err)
		return nil, nil, err
	}
	return cctx, func() { cancel(nil) }, nil
}
