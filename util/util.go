// Package util has a few small things that don't belong anywhere else.
package util

import (
	log "github.com/sirupsen/logrus"
)

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf logs at the info level.
var Logging = false

// Logf is a silly utility function that logs if Logging is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	log.Infof(format, args...)
}

// SetLogging sets Logging and the standard logger's level: debug when
// on and info otherwise.
func SetLogging(on bool) {
	Logging = on
	if on {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
