package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/AlexKrutoy/SnapsterBot/internal/orchestrator"
)

type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseBridging Phase = "bridging"
	PhaseRunning  Phase = "running"
	PhaseInvalid  Phase = "invalid"
	PhaseStopped  Phase = "stopped"
)

// AccountStatus is the externally visible state of one account.
type AccountStatus struct {
	Session   string    `json:"session"`
	RunID     string    `json:"run_id"`
	Phase     Phase     `json:"phase"`
	Proxy     string    `json:"proxy"`
	UserID    int64     `json:"user_id,omitempty"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	Lagging   bool      `json:"lagging,omitempty"`
	Points    float64   `json:"points"`
	League    string    `json:"league,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Registry collects account statuses for the status endpoint.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*AccountStatus
}

func NewRegistry() *Registry {
	return &Registry{accounts: make(map[string]*AccountStatus)}
}

func (r *Registry) update(session string, fn func(*AccountStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.accounts[session]
	if !ok {
		st = &AccountStatus{Session: session}
		r.accounts[session] = st
	}
	fn(st)
}

func (r *Registry) setPhase(session string, phase Phase, err error) {
	r.update(session, func(st *AccountStatus) {
		st.Phase = phase
		st.Error = ""
		if err != nil {
			st.Error = orchestrator.Sanitize(err)
		}
	})
}

func (r *Registry) recordCycle(session string, report orchestrator.CycleReport) {
	r.update(session, func(st *AccountStatus) {
		st.LastCycle = report.Finished
		st.Lagging = report.Lagging
		if report.Stats != nil {
			st.Points = report.Stats.Points
			st.League = report.Stats.League.Title
		}
	})
}

// Get returns a copy of one account's status.
func (r *Registry) Get(session string) (AccountStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.accounts[session]
	if !ok {
		return AccountStatus{}, false
	}
	return *st, true
}

// Snapshot returns copies of all statuses sorted by session name.
func (r *Registry) Snapshot() []AccountStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AccountStatus, 0, len(r.accounts))
	for _, st := range r.accounts {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Session < out[j].Session })
	return out
}
