package publish

import (
	"context"

	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Publisher = (*NoopPublisher)(nil)

// NoopPublisher logs the upload it would have made.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher returns a Publisher that uploads nothing.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Name() string { return BackendNone }

func (p *NoopPublisher) Publish(_ context.Context, localPath string, mode Mode) error {
	p.logger.Info("upload simulated",
		zap.String("path", localPath),
		zap.Stringer("mode", mode),
	)
	return nil
}
