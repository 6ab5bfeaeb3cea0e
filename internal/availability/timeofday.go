package availability

import (
	"encoding/json"
	"fmt"
)

// MinuteOfDay is a clock time expressed as minutes since midnight.
// It marshals as "HH:MM".
type MinuteOfDay int

func NewMinuteOfDay(hour, minute int) MinuteOfDay {
	return MinuteOfDay(hour*60 + minute)
}

func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewMinuteOfDay(hour, minute), nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MinuteOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMinuteOfDay(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// TimeWindow is a half-open [Start, End) span within one day.
type TimeWindow struct {
	Start MinuteOfDay `json:"start"`
	End   MinuteOfDay `json:"end"`
}

func (w TimeWindow) Minutes() int {
	return int(w.End) - int(w.Start)
}
