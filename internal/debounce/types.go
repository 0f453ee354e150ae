package debounce

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region rearm

// Rearm selects how a held condition may fire again.
type Rearm string

const (
	// RearmRepeat fires again whenever the cooldown elapses while the
	// condition is still held (continuous eye closure).
	RearmRepeat Rearm = "repeat"
	// RearmOnce fires at most once per episode; the next firing needs the
	// condition to clear first (a single yawn).
	RearmOnce Rearm = "once"
)

// #endregion rearm

// #region config

// Config holds the timing rules for one alert kind.
type Config struct {
	MinConfirm time.Duration `json:"min_confirm" validate:"gte=0"` // condition must hold this long
	Cooldown   time.Duration `json:"cooldown" validate:"gte=0"`    // minimum gap between firings
	Rearm      Rearm         `json:"rearm" validate:"oneof=repeat once"`
}

// configJSON is the wire form of Config. Durations use time.ParseDuration
// syntax ("1s", "500ms"), the same as environment configuration.
type configJSON struct {
	MinConfirm *string `json:"min_confirm,omitempty"`
	Cooldown   *string `json:"cooldown,omitempty"`
	Rearm      *Rearm  `json:"rearm,omitempty"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	minConfirm, cooldown := c.MinConfirm.String(), c.Cooldown.String()
	rearm := c.Rearm
	return json.Marshal(configJSON{MinConfirm: &minConfirm, Cooldown: &cooldown, Rearm: &rearm})
}

// UnmarshalJSON overlays the fields present in data onto c, so a partial
// object changes only what it names.
func (c *Config) UnmarshalJSON(data []byte) error {
	var aux configJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MinConfirm != nil {
		d, err := time.ParseDuration(*aux.MinConfirm)
		if err != nil {
			return fmt.Errorf("min_confirm: %w", err)
		}
		c.MinConfirm = d
	}
	if aux.Cooldown != nil {
		d, err := time.ParseDuration(*aux.Cooldown)
		if err != nil {
			return fmt.Errorf("cooldown: %w", err)
		}
		c.Cooldown = d
	}
	if aux.Rearm != nil {
		c.Rearm = *aux.Rearm
	}
	return nil
}

// #endregion config

// #region phase

// Phase is the logical position of the state machine.
type Phase int

const (
	Idle Phase = iota
	Pending
	Confirmed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// #endregion phase

// #region state

// State is the mutable temporal state for one kind. A zero time means unset.
type State struct {
	ConditionStart   time.Time
	LastFired        time.Time
	Confirmed        bool
	FiredThisEpisode bool
}

// Output is what one update reports to the caller.
type Output struct {
	Confirmed bool // condition held long enough; alert is active
	Fired     bool // a side effect should be triggered for this frame
}

// #endregion state
