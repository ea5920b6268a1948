package domain

// ScoreboardSchemaV1 tags every snapshot artifact.
const ScoreboardSchemaV1 = "scoreboard.v1"

// Audit events.
const (
	AuditEventGenerated = "SCOREBOARD_GENERATED"
)

// Snapshot triggers recorded in the audit log.
const (
	TriggerManual       = "manual"
	TriggerScheduled    = "scheduled"
	TriggerOrchestrated = "orchestrated"
)

// ScoreboardSnapshot is the immutable artifact written per version.
type ScoreboardSnapshot struct {
	SchemaVersion string        `json:"schema_version"`
	GeneratedAt   string        `json:"generated_at"`
	MinN          int           `json:"min_n"`
	MinConf       float64       `json:"min_conf"`
	Policy        string        `json:"policy"`
	Source        string        `json:"source"`
	InputHash     string        `json:"input_hash"`
	Buckets       []BucketStats `json:"buckets"`
}

// Lookup returns the stats for key, if the snapshot has them.
func (s *ScoreboardSnapshot) Lookup(key BucketKey) (BucketStats, bool) {
	for _, b := range s.Buckets {
		if b.Key == key {
			return b, true
		}
	}
	return BucketStats{}, false
}

// SnapshotPointer is the single mutable record naming the current version.
type SnapshotPointer struct {
	Current     string `json:"current"`
	Hash        string `json:"hash"`
	GeneratedAt string `json:"generated_at"`
}

// SnapshotMeta is written next to each artifact.
type SnapshotMeta struct {
	ScoreboardID string         `json:"scoreboard_id"`
	CreatedAt    string         `json:"created_at"`
	RunID        string         `json:"run_id"`
	Inputs       SnapshotInputs `json:"inputs"`
	Code         CodeIdentity   `json:"code"`
	Hashes       SnapshotHashes `json:"hashes"`
}

// SnapshotInputs captures what the snapshot was computed from.
type SnapshotInputs struct {
	OutcomesFile string `json:"outcomes_file"`
	OutcomesHash string `json:"outcomes_hash"`
}

// CodeIdentity names the code path that produced an artifact.
type CodeIdentity struct {
	Tool    string `json:"tool"`
	Module  string `json:"module"`
	Version string `json:"version"`
}

// SnapshotHashes holds content hashes of the artifact files.
type SnapshotHashes struct {
	Scoreboard string `json:"scoreboard"`
}

// AuditEntry is one line of the hash-chained audit log.
// EntryHash covers every other field, PrevEntryHash links to the prior line.
type AuditEntry struct {
	Ts            string `json:"ts"`
	Event         string `json:"event"`
	ScoreboardID  string `json:"scoreboard_id"`
	Hash          string `json:"hash"`
	Trigger       string `json:"trigger"`
	RunID         string `json:"run_id"`
	PrevEntryHash string `json:"prev_entry_hash"`
	EntryHash     string `json:"entry_hash"`
}
