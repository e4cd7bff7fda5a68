package config

import (
	"errors"
	"time"

	"github.com/segmentio/encoding/json"
)

// Duration is a time.Duration that reads "5s"-style strings or plain
// seconds from config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(v)
		return err
	default:
		return errors.New("invalid duration")
	}
}
