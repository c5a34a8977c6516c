package main

import "time"

// systemClock implements engine.Clock over the wall clock, truncated to
// whole seconds to match the protocol's seconds-resolution timestamps
// and timeouts (spec §6.4's timeouts are all expressed in seconds).
type systemClock struct{}

func (systemClock) Now() uint64 { return uint64(time.Now().Unix()) }
