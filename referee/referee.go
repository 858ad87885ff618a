// Package referee holds the records head referees share during an event:
// incident reports and per-match scratchpads.
package referee

import (
	"time"

	"github.com/kevinxiao27/consistent/lww"
)

type Outcome string

const (
	OutcomeGeneral    Outcome = "General"
	OutcomeMinor      Outcome = "Minor"
	OutcomeMajor      Outcome = "Major"
	OutcomeDisabled   Outcome = "Disabled"
	OutcomeInspection Outcome = "Inspection"
)

// MatchRef points at a match in the event schedule.
type MatchRef struct {
	Division int    `json:"division"`
	Round    string `json:"round"`
	Instance int    `json:"instance"`
	Number   int    `json:"number"`
}

type Incident struct {
	ID    string    `json:"id"`
	Event string    `json:"event"`
	Team  string    `json:"team"`
	Time  time.Time `json:"time"`

	Match   *MatchRef `json:"match"`
	Outcome Outcome   `json:"outcome"`
	Rules   []string  `json:"rules"`
	Notes   string    `json:"notes"`
	Assets  []string  `json:"assets"`
}

// IncidentIdentity are the fields fixed when an incident is written.
var IncidentIdentity = []string{"id", "event", "team", "time"}

func NewIncident(incident Incident, peer lww.PeerID) (lww.Record[Incident], error) {
	return lww.Init(incident, IncidentIdentity, peer)
}

type ScratchpadKind string

const (
	KindV5RC  ScratchpadKind = "V5RC"
	KindVIQRC ScratchpadKind = "VIQRC"
)

// Scratchpad is a referee's working notes for one match. Kind selects which
// of the game-specific fields apply; it merges like any other field.
type Scratchpad struct {
	ID    string   `json:"id"`
	Event string   `json:"event"`
	Match MatchRef `json:"match"`

	Kind  ScratchpadKind `json:"kind"`
	Notes string         `json:"notes"`

	// V5RC
	AutoWinner string          `json:"auto_winner,omitempty"`
	AWP        map[string]bool `json:"awp,omitempty"`

	// VIQRC
	Stopped map[string]bool `json:"stopped,omitempty"`
}

var ScratchpadIdentity = []string{"id", "event", "match"}

func NewScratchpad(pad Scratchpad, peer lww.PeerID) (lww.Record[Scratchpad], error) {
	return lww.Init(pad, ScratchpadIdentity, peer)
}
