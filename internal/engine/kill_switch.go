package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/observability"
)

// KillSwitch halts new BUY decisions. It trips after MaxFailures consecutive
// failed executions and stays active until Deactivate is called.
type KillSwitch struct {
	mu          sync.RWMutex
	active      bool
	activatedAt time.Time
	reason      string
	failures    int
	maxFailures int
	log         zerolog.Logger
}

// NewKillSwitch creates an inactive kill switch. maxFailures <= 0 disables
// automatic activation.
func NewKillSwitch(maxFailures int, log zerolog.Logger) *KillSwitch {
	return &KillSwitch{maxFailures: maxFailures, log: log}
}

// Activate trips the switch.
func (ks *KillSwitch) Activate(reason string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.activateLocked(reason)
}

func (ks *KillSwitch) activateLocked(reason string) {
	if ks.active {
		return
	}
	ks.active = true
	ks.activatedAt = time.Now()
	ks.reason = reason
	observability.SetKillSwitch(true)
	ks.log.Error().Str("reason", reason).Msg("kill switch activated")
}

// Deactivate clears the switch and the failure streak.
func (ks *KillSwitch) Deactivate() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.active = false
	ks.reason = ""
	ks.failures = 0
	observability.SetKillSwitch(false)
	ks.log.Warn().Msg("kill switch deactivated")
}

// RecordExecution feeds one execution outcome into the failure streak.
func (ks *KillSwitch) RecordExecution(ok bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ok {
		ks.failures = 0
		return
	}
	ks.failures++
	if ks.maxFailures > 0 && ks.failures >= ks.maxFailures {
		ks.activateLocked(fmt.Sprintf("%d consecutive execution failures", ks.failures))
	}
}

// IsActive reports whether new BUYs are halted.
func (ks *KillSwitch) IsActive() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.active
}

// Status returns the state, the activation reason and time.
func (ks *KillSwitch) Status() (bool, string, time.Time) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.active, ks.reason, ks.activatedAt
}
