// Package agent runs the polling loop that records network identity
// changes and publishes the recorded file.
package agent

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/internal/change"
	"github.com/HerbHall/netlogger/internal/fsutil"
	"github.com/HerbHall/netlogger/internal/journal"
	"github.com/HerbHall/netlogger/internal/metrics"
	"github.com/HerbHall/netlogger/internal/netinfo"
	"github.com/HerbHall/netlogger/internal/publish"
	"github.com/HerbHall/netlogger/internal/state"
	"github.com/HerbHall/netlogger/pkg/models"
)

// MetadataSource supplies the hostname and description to record.
type MetadataSource interface {
	Load() (models.Metadata, error)
}

// Deps are the collaborators the agent drives.
type Deps struct {
	Source    netinfo.Source
	Metadata  MetadataSource
	Store     state.Store
	Recorder  journal.Recorder
	Publisher publish.Publisher
	Publish   publish.Config

	// Metrics is optional; a private registry is used when nil.
	Metrics *metrics.Metrics
}

// Agent is the network logging agent. One Agent owns its state store and
// journal; ticks run strictly one after another.
type Agent struct {
	config Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.Mutex
	cancel context.CancelFunc
	status Status
}

// NewAgent creates a new agent.
func NewAgent(config Config, deps Deps, logger *zap.Logger) *Agent {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	return &Agent{
		config: config,
		deps:   deps,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		status: Status{Phase: PhaseIdle},
	}
}

// Run waits out the startup delay, then ticks every poll interval until
// ctx is cancelled. Tick failures never end the loop.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.status.StartedAt = a.now().UTC()
	a.mu.Unlock()
	defer cancel()

	a.logger.Info("network logger starting",
		zap.String("platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
		zap.Duration("startup_delay", a.config.StartupDelay),
		zap.Duration("poll_interval", a.config.PollInterval),
		zap.String("trigger", a.config.Trigger),
		zap.String("publisher", a.deps.Publisher.Name()),
	)

	if a.config.StartupDelay > 0 {
		a.setPhase(PhaseStartupDelay)
		a.logger.Info("waiting for network to settle", zap.Duration("delay", a.config.StartupDelay))
		if !sleep(ctx, a.config.StartupDelay) {
			a.logger.Info("network logger shutting down")
			return nil
		}
	}

	for {
		a.Tick(ctx)

		a.setPhase(PhaseSleeping)
		if !sleep(ctx, a.config.PollInterval) {
			a.logger.Info("network logger shutting down")
			return nil
		}
	}
}

// Stop signals Run to return.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Tick runs one polling step: acquire, compare, and on change record,
// save and publish.
func (a *Agent) Tick(ctx context.Context) TickResult {
	a.setPhase(PhasePolling)
	start := time.Now()

	res := a.safePoll(ctx)
	res.At = a.now().UTC()

	a.deps.Metrics.ObserveTick(string(res.Outcome), time.Since(start))
	a.recordStatus(res)
	return res
}

// safePoll turns a panic in a collaborator into a failed tick so the loop
// keeps running. A panic before the save leaves state unchanged and the
// change is picked up again next tick.
func (a *Agent) safePoll(ctx context.Context) (res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tick panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = TickResult{Outcome: OutcomePanicked, PanicErr: fmt.Errorf("tick panicked: %v", r)}
		}
	}()
	return a.poll(ctx)
}

func (a *Agent) poll(ctx context.Context) TickResult {
	var res TickResult

	md, err := a.deps.Metadata.Load()
	if err != nil {
		a.logger.Warn("metadata unavailable, using defaults", zap.Error(err))
	}

	snap, err := a.deps.Source.Acquire(ctx)
	if err != nil {
		res.AcquireErr = err
		a.deps.Metrics.AcquireFailed()
		if a.config.OnAcquireError == AcquireSkip {
			a.logger.Warn("network acquisition failed, skipping tick", zap.Error(err))
			res.Outcome = OutcomeSkipped
			return res
		}
		a.logger.Warn("network acquisition failed, treating as no interfaces", zap.Error(err))
		snap = models.Snapshot{}
	}
	res.Snapshot = snap
	a.deps.Metrics.SetInterfaces(snap.Len())

	stored, err := a.deps.Store.Load(ctx)
	if err != nil {
		res.StateErr = err
		a.deps.Metrics.StateLoadFailed()
		a.logger.Warn("stored state unusable, comparing against empty", zap.Error(err))
		stored = models.StoredState{}
	}

	changed := change.Changed(snap, stored.Snapshot)
	if changed {
		res.Delta = change.Diff(snap, stored.Snapshot)
	}
	recordPath := a.deps.Recorder.Path(md.Hostname)

	if !changed && a.config.Trigger != TriggerAlways {
		res.Outcome = OutcomeUnchanged
		a.logger.Debug("network unchanged", zap.Int("interfaces", snap.Len()))
		if a.deps.Publish.Policy == publish.PolicyAlways && fsutil.Exists(recordPath) {
			res.Published = true
			res.PublishErrs = a.publishAll(ctx, recordPath)
		}
		return res
	}

	rec := models.LogRecord{
		ID:          a.newID(),
		Timestamp:   a.now().UTC(),
		Hostname:    md.Hostname,
		Description: md.Description,
		Snapshot:    snap,
	}
	if err := a.deps.Recorder.Record(ctx, rec); err != nil {
		// State stays at the previous snapshot so the next tick sees the
		// same change and retries.
		res.RecordErr = err
		res.Outcome = OutcomeRecordFailed
		a.logger.Error("failed to record network change", zap.String("path", recordPath), zap.Error(err))
		return res
	}
	res.Outcome = OutcomeRecorded
	a.deps.Metrics.MarkChange(rec.Timestamp)
	a.logger.Info("network change recorded",
		zap.String("record_id", rec.ID),
		zap.String("path", recordPath),
		zap.Strings("interfaces", snap.Names()),
		zap.Strings("added", res.Delta.Added),
		zap.Strings("removed", res.Delta.Removed),
		zap.Strings("modified", res.Delta.Modified),
	)

	if err := a.deps.Store.Save(ctx, snap); err != nil {
		res.SaveErr = err
		a.logger.Error("failed to save state; change will be recorded again", zap.Error(err))
	}

	res.Published = true
	res.PublishErrs = a.publishAll(ctx, recordPath)
	return res
}

// publishAll uploads the record file, then any extra files that are not
// yet present remotely. Every call is bounded by the publish timeout.
func (a *Agent) publishAll(ctx context.Context, recordPath string) []error {
	type upload struct {
		path string
		mode publish.Mode
	}
	uploads := []upload{{recordPath, publish.Replace}}
	for _, p := range a.deps.Publish.ExtraFiles {
		if !fsutil.Exists(p) {
			a.logger.Debug("extra file missing, not publishing", zap.String("path", p))
			continue
		}
		uploads = append(uploads, upload{p, publish.SkipExisting})
	}

	var errs []error
	for _, u := range uploads {
		pctx, cancel := context.WithTimeout(ctx, a.deps.Publish.Timeout)
		err := a.deps.Publisher.Publish(pctx, u.path, u.mode)
		cancel()

		a.deps.Metrics.ObservePublish(a.deps.Publisher.Name(), err)
		if err != nil {
			a.logger.Error("publish failed", zap.String("path", u.path), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errs
}
