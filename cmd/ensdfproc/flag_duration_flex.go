package main

import (
	"time"

	"github.com/hyperifyio/ensdfkit/internal/config"
)

// durationFlexFlag wires a duration destination that also accepts plain
// seconds.
type durationFlexFlag struct {
	dst *time.Duration
}

func (f durationFlexFlag) String() string {
	if f.dst == nil {
		return ""
	}
	return f.dst.String()
}

func (f durationFlexFlag) Set(s string) error {
	d, err := config.ParseDuration(s)
	if err != nil {
		return err
	}
	*f.dst = d
	return nil
}
