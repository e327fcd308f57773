package actions

import (
	"parkrep/core/internal/logging"
	"parkrep/core/internal/park"
)

// RecordFunc receives every successfully executed, non-ghost action with the tick it ran on.
type RecordFunc func(tick uint32, action Action)

// AuthoriseFunc decides whether a live player may run an action.
type AuthoriseFunc func(player int32, action Action) bool

// Executor applies actions to a park and forwards successful ones to an optional recorder.
type Executor struct {
	park     *park.Park
	record   RecordFunc
	allow    AuthoriseFunc
	log      *logging.Logger
	executed uint64
	failed   uint64
}

// NewExecutor binds an executor to a park.
func NewExecutor(p *park.Park, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.L()
	}
	return &Executor{park: p, log: logger}
}

// SetRecorder installs the hook called after every successful execution.
func (e *Executor) SetRecorder(fn RecordFunc) {
	if e == nil {
		return
	}
	e.record = fn
}

// SetAuthoriser installs the player permission check. Replayed actions bypass it.
func (e *Executor) SetAuthoriser(fn AuthoriseFunc) {
	if e == nil {
		return
	}
	e.allow = fn
}

// Execute validates and applies an action.
func (e *Executor) Execute(a Action) Result {
	if e == nil || e.park == nil || a == nil {
		return Result{Status: StatusUnknown, Message: "executor not initialised", Position: park.NullCoords()}
	}
	if e.allow != nil && a.Flags()&FlagReplay == 0 && !e.allow(a.Player(), a) {
		e.failed++
		return Result{Status: StatusDisallowed, Message: "player not permitted", Position: park.NullCoords()}
	}
	//1.- Paused parks only accept actions that opt in, unless the cheat allows building.
	if e.park.Paused() && !a.AllowedWhilePaused() && e.park.Cheat(park.CheatBuildInPauseMode) == 0 {
		e.failed++
		return Result{Status: StatusGamePaused, Message: "game is paused", Position: park.NullCoords()}
	}
	tick := e.park.CurrentTick()
	result := a.Execute(e.park)
	if !result.OK() {
		e.failed++
		e.log.Debug("action rejected",
			logging.Uint32("tick", tick),
			logging.Uint32("type", uint32(a.Type())),
			logging.String("status", result.Status.String()),
			logging.String("reason", result.Message),
		)
		return result
	}
	e.executed++
	//2.- Ghost previews never reach a recording.
	if e.record != nil && a.Flags()&FlagGhost == 0 {
		e.record(tick, a)
	}
	return result
}

// Counts reports how many actions succeeded and failed.
func (e *Executor) Counts() (executed, failed uint64) {
	if e == nil {
		return 0, 0
	}
	return e.executed, e.failed
}
