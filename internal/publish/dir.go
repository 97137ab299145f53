package publish

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/internal/fsutil"
)

// Compile-time interface guard.
var _ Publisher = (*DirPublisher)(nil)

// DirPublisher copies files into a directory, typically a network share or
// a folder kept in sync by a desktop storage client.
type DirPublisher struct {
	dir    string
	logger *zap.Logger
}

// NewDirPublisher returns a Publisher that copies into dir.
func NewDirPublisher(dir string, logger *zap.Logger) *DirPublisher {
	return &DirPublisher{dir: dir, logger: logger}
}

func (p *DirPublisher) Name() string { return BackendDir }

func (p *DirPublisher) Publish(ctx context.Context, localPath string, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return wrapErr(BackendDir, localPath, err)
	}
	dst := filepath.Join(p.dir, filepath.Base(localPath))
	if mode == SkipExisting && fsutil.Exists(dst) {
		p.logger.Debug("remote file exists, skipping", zap.String("remote", dst))
		return nil
	}
	if err := fsutil.CopyFileAtomic(localPath, dst, 0o644); err != nil {
		return wrapErr(BackendDir, localPath, err)
	}
	p.logger.Info("file published", zap.String("path", localPath), zap.String("remote", dst))
	return nil
}
