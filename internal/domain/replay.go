package domain

import "time"

// ReplaySchemaVersion is written into every replay record.
const ReplaySchemaVersion = 1

// ReplayHeader is the first record of a replay artifact.
type ReplayHeader struct {
	Type          string `json:"type"`          // "header"
	SchemaVersion int    `json:"schemaVersion"` // 1
	SessionID     string `json:"session_id"`
	RandomSeed    uint32 `json:"random_seed"`
	MapName       string `json:"map"`
	ModName       string `json:"mod"`
	MapChecksum   string `json:"map_checksum"` // 8 hex digits
	ModChecksum   string `json:"mod_checksum"` // 8 hex digits
	Script        string `json:"script"`
	StartedAt     string `json:"started_at"` // RFC3339
}

// ReplayEvent records a participant joining or leaving.
type ReplayEvent struct {
	Type          string `json:"type"` // "join" or "leave"
	SchemaVersion int    `json:"schemaVersion"`
	Participant   string `json:"participant"`
	Remote        string `json:"remote,omitempty"`
	At            string `json:"at"`
}

// ReplayEnd closes a replay artifact.
type ReplayEnd struct {
	Type            string `json:"type"` // "end"
	SchemaVersion   int    `json:"schemaVersion"`
	Participants    int    `json:"participants"`
	DurationSeconds int    `json:"duration_seconds"`
	EndedAt         string `json:"ended_at"`
}

// NewReplayEvent creates a join/leave record.
func NewReplayEvent(kind, participant, remote string, at time.Time) *ReplayEvent {
	return &ReplayEvent{
		Type:          kind,
		SchemaVersion: ReplaySchemaVersion,
		Participant:   participant,
		Remote:        remote,
		At:            at.UTC().Format(time.RFC3339),
	}
}

// NewReplayEnd creates the trailing record.
func NewReplayEnd(participants int, started, ended time.Time) *ReplayEnd {
	return &ReplayEnd{
		Type:            "end",
		SchemaVersion:   ReplaySchemaVersion,
		Participants:    participants,
		DurationSeconds: int(ended.Sub(started).Seconds()),
		EndedAt:         ended.UTC().Format(time.RFC3339),
	}
}
