// Package checkpoint provides the atomic file-backed pipeline.CheckpointStore
// used by the in-memory engine. The Mongo-backed alternative lives in the
// mongo subpackage.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	coreerrors "stencilacore/errors"
	"stencilacore/pipeline"
)

// FileStore is a pipeline.CheckpointStore backed by one JSON file per run
// under a directory, written atomically via a temp file + fsync + rename.
// Readers tolerate a missing or partial ".tmp" sibling left behind by a
// crash mid-write: only the final path is ever read.
type FileStore struct {
	Dir string
}

var _ pipeline.CheckpointStore = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on first Write if absent.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(runID string) string {
	return filepath.Join(s.Dir, runID+".json")
}

// Write serializes cp and atomically replaces the run's checkpoint file: it
// writes to a sibling ".tmp" file, fsyncs it, then renames it over the
// final path. Rename is atomic on POSIX filesystems, so a crash between the
// write and the rename leaves the previous checkpoint (or nothing) intact,
// never a half-written file at the final path.
func (s *FileStore) Write(ctx context.Context, runID string, cp *pipeline.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return coreerrors.Wrap(coreerrors.KindCancelled, err, "checkpoint write cancelled")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, err, "create checkpoint directory")
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindJSON, err, "marshal checkpoint")
	}
	final := s.path(runID)
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, err, "open checkpoint tmp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return coreerrors.Wrap(coreerrors.KindIO, err, "write checkpoint tmp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return coreerrors.Wrap(coreerrors.KindIO, err, "fsync checkpoint tmp file")
	}
	if err := f.Close(); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, err, "close checkpoint tmp file")
	}
	if err := os.Rename(tmp, final); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, err, "rename checkpoint tmp file")
	}
	return nil
}

// Read loads the most recently written checkpoint for runID. A stray
// ".tmp" sibling from an interrupted write is ignored: Read only ever
// opens the final path.
func (s *FileStore) Read(ctx context.Context, runID string) (*pipeline.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindCancelled, err, "checkpoint read cancelled")
	}
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerrors.Newf(coreerrors.KindNodeNotFound, "no checkpoint for run %q", runID)
		}
		return nil, coreerrors.Wrap(coreerrors.KindIO, err, "read checkpoint file")
	}
	var cp pipeline.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindJSON, err, fmt.Sprintf("unmarshal checkpoint for run %q", runID))
	}
	return &cp, nil
}
