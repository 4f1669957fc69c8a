package model

import "stepsim/internal/sim"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted header of one completed simulation run. The
// bulk outputs (per-transfer stats, trajectories, mutation traces) are
// stored separately keyed by the run id.
type RunRecord struct {
	VersionedRecord
	ID string `json:"id"`
	// Label is an optional human-readable name for the run.
	Label       string     `json:"label,omitempty"`
	Config      sim.Config `json:"config"`
	Generations int        `json:"generations"`
	ClampEvents int64      `json:"clamp_events"`
	// Replicate is set for runs that came out of a batch.
	Replicate int `json:"replicate,omitempty"`
	// FinishedAt is an RFC 3339 timestamp recorded when the run was saved.
	FinishedAt string `json:"finished_at,omitempty"`
}
