package registry

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Params are the caller supplied indexing parameters.
type Params struct {
	Name     string
	Wait     bool
	Interval float64 // Seconds between task status requests.
	Timeout  *int    // Seconds to wait for the task; nil waits forever.
}

// DefaultParams returns the parameters used when only a name is given.
func DefaultParams(name string) Params {
	return Params{
		Name:     name,
		Wait:     true,
		Interval: 1.0,
	}
}

// Options are validated Params converted to durations.
type Options struct {
	Name     string
	Wait     bool
	Interval time.Duration
	Timeout  time.Duration // Zero means no timeout.
}

// maxSeconds is the longest interval or timeout a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Validate checks the parameters before any network call is made.
func (p Params) Validate() (Options, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Options{}, fmt.Errorf("name is required")
	}
	if math.IsNaN(p.Interval) || math.IsInf(p.Interval, 0) || p.Interval <= 0 {
		return Options{}, fmt.Errorf("interval must be a positive number of seconds, got %v", p.Interval)
	}

	if p.Interval > float64(maxSeconds) {
		return Options{}, fmt.Errorf("interval %v is too large, the maximum is %d seconds", p.Interval, maxSeconds)
	}

	opts := Options{
		Name:     name,
		Wait:     p.Wait,
		Interval: time.Duration(p.Interval * float64(time.Second)),
	}
	if opts.Interval <= 0 {
		return Options{}, fmt.Errorf("interval %v is too small", p.Interval)
	}

	if p.Timeout != nil {
		if *p.Timeout <= 0 {
			return Options{}, fmt.Errorf("timeout must be a positive number of seconds, got %d", *p.Timeout)
		}
		if int64(*p.Timeout) > maxSeconds {
			return Options{}, fmt.Errorf("timeout %d is too large, the maximum is %d seconds", *p.Timeout, maxSeconds)
		}
		opts.Timeout = time.Duration(*p.Timeout) * time.Second
	}
	return opts, nil
}
