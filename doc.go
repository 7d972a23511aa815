// Package scxml is an SCXML state machine interpreter.
//
// Documents (YAML or JSON renditions of SCXML) are read by package
// loader and compiled by package core, which also runs sessions.
// Datamodels are in interpreters, event I/O processors are in sio,
// and package crew manages many sessions at once.  The scxml command
// in cmd/scxml runs, renders, and checks documents.
package scxml
