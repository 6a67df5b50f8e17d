package realtime

import "time"

// Event types pushed to clients.
const (
	EventCompleteness    = "completeness"
	EventRoadmapProgress = "roadmap_progress"
	EventWizardPhase     = "wizard_phase"
	EventDigest          = "digest"
	EventStatus          = "status"
)

// Client message types.
const (
	MessageTypeHello = "hello"
)

// Message is the wire format for every frame sent or received.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target,omitempty"`
}
