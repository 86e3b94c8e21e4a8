package catalog

import "time"

// DefaultPatternKey is the pattern selected when nothing else is configured.
const DefaultPatternKey = "default"

// VibrationPattern is a named pulse sequence. Pulses alternate
// vibrate/pause in milliseconds, starting with vibrate.
type VibrationPattern struct {
	Key    string
	Label  string
	Pulses []int
}

// Duration returns the total length of the pattern.
func (p VibrationPattern) Duration() time.Duration {
	var total int
	for _, ms := range p.Pulses {
		total += ms
	}
	return time.Duration(total) * time.Millisecond
}

// Clone returns a copy whose Pulses slice does not alias the table.
func (p VibrationPattern) Clone() VibrationPattern {
	out := p
	out.Pulses = append([]int(nil), p.Pulses...)
	return out
}

var patterns = []VibrationPattern{
	{Key: "default", Label: "Default", Pulses: []int{200, 100, 200}},
	{Key: "short", Label: "Short buzz", Pulses: []int{100}},
	{Key: "long", Label: "Long buzz", Pulses: []int{1000}},
	{Key: "heartbeat", Label: "Heartbeat", Pulses: []int{100, 100, 100, 600, 100, 100, 100}},
	{Key: "sos", Label: "SOS", Pulses: []int{
		100, 100, 100, 100, 100, 300,
		300, 100, 300, 100, 300, 300,
		100, 100, 100, 100, 100,
	}},
	{Key: "rapid", Label: "Rapid fire", Pulses: []int{50, 50, 50, 50, 50, 50, 50, 50, 50}},
}

// Patterns returns the pattern table in display order.
func Patterns() []VibrationPattern {
	out := make([]VibrationPattern, len(patterns))
	for i, p := range patterns {
		out[i] = p.Clone()
	}
	return out
}

// LookupPattern finds a pattern by key.
func LookupPattern(key string) (VibrationPattern, bool) {
	for _, p := range patterns {
		if p.Key == key {
			return p.Clone(), true
		}
	}
	return VibrationPattern{}, false
}

// PatternKeys returns the keys in display order.
func PatternKeys() []string {
	keys := make([]string, len(patterns))
	for i, p := range patterns {
		keys[i] = p.Key
	}
	return keys
}
