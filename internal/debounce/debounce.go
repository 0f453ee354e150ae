package debounce

import "time"

// #region debouncer

// Debouncer converts a raw boolean condition stream into confirmed and fired
// signals. It is not safe for concurrent use; one goroutine drives it with
// monotonically non-decreasing timestamps.
type Debouncer struct {
	config Config
	state  State
}

// New creates an idle debouncer.
func New(config Config) *Debouncer {
	return &Debouncer{config: config}
}

// #endregion debouncer

// #region update

// Update advances the state machine by one observation taken at now.
func (d *Debouncer) Update(condition bool, now time.Time) Output {
	if !condition {
		// LastFired survives so the cooldown spans episodes.
		d.state.ConditionStart = time.Time{}
		d.state.Confirmed = false
		d.state.FiredThisEpisode = false
		return Output{}
	}

	if d.state.ConditionStart.IsZero() {
		d.state.ConditionStart = now
	}
	if now.Sub(d.state.ConditionStart) < d.config.MinConfirm {
		return Output{}
	}

	d.state.Confirmed = true
	if !d.canFire(now) {
		return Output{Confirmed: true}
	}

	d.state.LastFired = now
	d.state.FiredThisEpisode = true
	return Output{Confirmed: true, Fired: true}
}

func (d *Debouncer) canFire(now time.Time) bool {
	if d.config.Rearm == RearmOnce && d.state.FiredThisEpisode {
		return false
	}
	if d.state.LastFired.IsZero() {
		return true
	}
	return now.Sub(d.state.LastFired) >= d.config.Cooldown
}

// #endregion update

// #region accessors

// State returns a copy of the current state.
func (d *Debouncer) State() State {
	return d.state
}

// Phase reports Idle, Pending or Confirmed.
func (d *Debouncer) Phase() Phase {
	switch {
	case d.state.Confirmed:
		return Confirmed
	case !d.state.ConditionStart.IsZero():
		return Pending
	default:
		return Idle
	}
}

// Config returns the active configuration.
func (d *Debouncer) Config() Config {
	return d.config
}

// SetConfig replaces the timing rules. Accumulated timers are kept, so a
// running episode is judged against the new MinConfirm on the next update.
func (d *Debouncer) SetConfig(config Config) {
	d.config = config
}

// Reset returns the debouncer to Idle and forgets the last firing.
func (d *Debouncer) Reset() {
	d.state = State{}
}

// #endregion accessors
