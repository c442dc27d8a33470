package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Duration is a time.Duration that reads bare numbers as seconds and
// writes itself as "<n>s".
type Duration time.Duration

// Std returns the standard library value.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) seconds() string {
	seconds := time.Duration(d).Seconds()
	if seconds == float64(int64(seconds)) {
		return fmt.Sprintf("%.0fs", seconds)
	}
	return fmt.Sprintf("%gs", seconds)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.seconds())
}

// UnmarshalJSON accepts 30, "30" or "30s".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.parseValue(raw)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.seconds(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return d.parseValue(raw)
}

// UnmarshalTOML receives int64, float64 or string from the TOML decoder.
func (d *Duration) UnmarshalTOML(raw any) error {
	return d.parseValue(raw)
}

// parseValue is shared by the JSON, YAML, TOML and environment decoders.
func (d *Duration) parseValue(raw any) error {
	switch v := raw.(type) {
	case string:
		if parsed, err := time.ParseDuration(v); err == nil {
			*d = Duration(parsed)
			return nil
		}
		seconds, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("invalid duration format: %q", v)
		}
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil

	case bool, nil:
		return fmt.Errorf("duration must be a number or string, got %T", raw)

	default:
		seconds, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("duration must be a number or string, got %T", raw)
		}
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}
}
