package risk

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/orionhq/riskgate/config"
	"github.com/orionhq/riskgate/store"
)

// Preset is the mutable risk configuration. It is read fresh before
// every evaluation and mutated only through PresetStore.Patch.
type Preset struct {
	ThrottleSeconds      int     `json:"ORDER_THROTTLE_SECONDS"`
	OrdersPerMinLimit    int     `json:"ORDERS_PER_MIN_LIMIT"`
	MaxPositionRisk      float64 `json:"MAX_POSITION_RISK"`
	DailyLossLimit       float64 `json:"DAILY_LOSS_LIMIT"`
	SessionEnabled       bool    `json:"SESSION_ENABLED"`
	AllowPremarket       bool    `json:"ALLOW_PREMARKET"`
	AllowAfterhours      bool    `json:"ALLOW_AFTERHOURS"`
	Timezone             string  `json:"TIMEZONE"`
	RTHStart             string  `json:"RTH_START"` // HH:MM
	RTHEnd               string  `json:"RTH_END"`   // HH:MM
	CooloffAfterDrawdown bool    `json:"COOLOFF_AFTER_DRAWDOWN"`
	BlockOnUnknownPnL    bool    `json:"BLOCK_ON_UNKNOWN_PNL"`
}

// DefaultPreset seeds from the conventional environment variables the
// desk deployment already sets.
func DefaultPreset() Preset {
	return Preset{
		ThrottleSeconds:      config.EnvInt("ORDER_THROTTLE_SECONDS", 3),
		OrdersPerMinLimit:    config.EnvInt("ORDERS_PER_MIN_LIMIT", 15),
		MaxPositionRisk:      config.EnvFloat("MAX_POSITION_RISK", 2500),
		DailyLossLimit:       config.EnvFloat("DAILY_LOSS_LIMIT", 500),
		SessionEnabled:       config.EnvBool("SESSION_ENABLED", true),
		AllowPremarket:       config.EnvBool("ALLOW_PREMARKET", false),
		AllowAfterhours:      config.EnvBool("ALLOW_AFTERHOURS", false),
		Timezone:             config.EnvStr("SESSION_TZ", "America/New_York"),
		RTHStart:             config.EnvStr("RTH_START", "09:30"),
		RTHEnd:               config.EnvStr("RTH_END", "16:00"),
		CooloffAfterDrawdown: config.EnvBool("COOLOFF_AFTER_DRAWDOWN", false),
		BlockOnUnknownPnL:    config.EnvBool("BLOCK_ON_UNKNOWN_PNL", false),
	}
}

func (p Preset) validate() error {
	if p.ThrottleSeconds < 0 {
		return fmt.Errorf("ORDER_THROTTLE_SECONDS must be >= 0")
	}
	if p.OrdersPerMinLimit < 1 {
		return fmt.Errorf("ORDERS_PER_MIN_LIMIT must be >= 1")
	}
	if p.MaxPositionRisk <= 0 {
		return fmt.Errorf("MAX_POSITION_RISK must be > 0")
	}
	if p.DailyLossLimit < 0 {
		return fmt.Errorf("DAILY_LOSS_LIMIT must be >= 0")
	}
	return nil
}

// PresetStore persists the preset document in the settings table.
// Current overlays the persisted document on the env-seeded defaults,
// so a partial document never loses fields.
type PresetStore struct {
	mu       sync.Mutex
	store    *store.Store
	defaults Preset
}

func NewPresetStore(s *store.Store) *PresetStore {
	return &PresetStore{store: s, defaults: DefaultPreset()}
}

func (ps *PresetStore) Current() (Preset, error) {
	p := ps.defaults
	raw, ok, err := ps.store.GetSetting(store.KeyPreset)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// A corrupt document must not brick the gates; fall back to
		// defaults and let the next Patch rewrite it.
		return ps.defaults, nil
	}
	return p, nil
}

// Patch applies the JSON document fields onto the current preset and
// persists the merged result atomically. Unknown keys are ignored.
func (ps *PresetStore) Patch(fields map[string]any) (Preset, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, err := ps.Current()
	if err != nil {
		return p, err
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return p, fmt.Errorf("marshal preset patch: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("apply preset patch: %w", err)
	}
	if err := p.validate(); err != nil {
		return p, fmt.Errorf("invalid preset: %w", err)
	}

	doc, err := json.Marshal(p)
	if err != nil {
		return p, fmt.Errorf("marshal preset: %w", err)
	}
	if err := ps.store.SetSetting(store.KeyPreset, string(doc)); err != nil {
		return p, err
	}
	return p, nil
}
