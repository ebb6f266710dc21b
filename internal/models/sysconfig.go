package models

// SystemConfig keys used by the core.
const (
	// ConfigCurrentWeek holds the live logical week pointer, starting at "1".
	// It advances only through the rollover (or the unsafe manual override).
	ConfigCurrentWeek = "current_week"
	// ConfigLastResetWeek stamps the real-world ISO year-week of the last
	// rollover. Advisory only: it drives the "time to roll over" warning and
	// can diverge freely from the logical counter.
	ConfigLastResetWeek = "last_reset_week_id"
)

// SystemConfig is a generic key/value configuration row.
type SystemConfig struct {
	Key   string `db:"key" json:"key"`
	Value string `db:"value" json:"value"`
}
