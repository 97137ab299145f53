package agent

import (
	"time"

	"github.com/HerbHall/netlogger/internal/change"
	"github.com/HerbHall/netlogger/pkg/models"
)

// Outcome classifies a finished tick.
type Outcome string

const (
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeRecorded     Outcome = "recorded"
	OutcomeRecordFailed Outcome = "record_failed"
	OutcomeSkipped      Outcome = "skipped"
	OutcomePanicked     Outcome = "panicked"
)

// TickResult describes what one tick did.
type TickResult struct {
	At        time.Time
	Outcome   Outcome
	Snapshot  models.Snapshot
	Delta     change.Delta
	Published bool

	AcquireErr  error
	StateErr    error
	RecordErr   error
	SaveErr     error
	PanicErr    error
	PublishErrs []error
}

// Phase is where the loop currently is.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseStartupDelay Phase = "waiting_startup_delay"
	PhasePolling      Phase = "polling"
	PhaseSleeping     Phase = "sleeping"
)

// Status is a read model of the agent for the status endpoint.
type Status struct {
	Phase           Phase                         `json:"phase"`
	StartedAt       time.Time                     `json:"started_at,omitzero"`
	LastTick        time.Time                     `json:"last_tick,omitzero"`
	LastOutcome     Outcome                       `json:"last_outcome,omitempty"`
	LastChange      time.Time                     `json:"last_change,omitzero"`
	LastError       string                        `json:"last_error,omitempty"`
	Ticks           int                           `json:"ticks"`
	Changes         int                           `json:"changes"`
	RecordFailures  int                           `json:"record_failures"`
	PublishFailures int                           `json:"publish_failures"`
	Interfaces      []models.InterfaceObservation `json:"interfaces"`
}

// Status returns a copy of the agent's current status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.status
	s.Interfaces = make([]models.InterfaceObservation, len(a.status.Interfaces))
	copy(s.Interfaces, a.status.Interfaces)
	return s
}

func (a *Agent) setPhase(p Phase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Phase = p
}

func (a *Agent) recordStatus(res TickResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.status
	s.Ticks++
	s.LastTick = res.At
	s.LastOutcome = res.Outcome
	s.LastError = ""
	if res.Outcome != OutcomeSkipped && res.Outcome != OutcomePanicked {
		s.Interfaces = res.Snapshot.Canonical()
	}
	switch res.Outcome {
	case OutcomeRecorded:
		s.Changes++
		s.LastChange = res.At
	case OutcomeRecordFailed:
		s.RecordFailures++
	}
	s.PublishFailures += len(res.PublishErrs)

	for _, err := range []error{res.PanicErr, res.RecordErr, res.SaveErr, res.AcquireErr, res.StateErr} {
		if err != nil {
			s.LastError = err.Error()
			break
		}
	}
	if s.LastError == "" && len(res.PublishErrs) > 0 {
		s.LastError = res.PublishErrs[0].Error()
	}
}
