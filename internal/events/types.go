// Package events provides event types and publishing infrastructure for gatewright.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventRunStarted indicates gate execution began for a PR head.
	EventRunStarted EventType = "run_started"
	// EventGateFinished indicates a single gate completed.
	EventGateFinished EventType = "gate_finished"
	// EventRunFinished indicates the whole run aggregated to a verdict.
	EventRunFinished EventType = "run_finished"
	// EventCheckPublished indicates a check was created or updated on the forge.
	EventCheckPublished EventType = "check_published"
	// EventPolicyError indicates the policy document could not be loaded.
	EventPolicyError EventType = "policy_error"
	// EventError indicates a processing error.
	EventError EventType = "error"
)

// Event represents a published event.
type Event struct {
	Type EventType `json:"type"`
	// Repo is the full repository name ("owner/name").
	Repo string    `json:"repo"`
	PR   int       `json:"pr,omitempty"`
	SHA  string    `json:"sha,omitempty"`
	Data any       `json:"data,omitempty"`
	Time time.Time `json:"time"`
}
