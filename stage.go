package audit

// StageID identifies a pipeline stage on the wire.
type StageID string

// Known pipeline stages, in the order the service runs them.
const (
	StageStrategist StageID = "strategist"
	StageAuditor    StageID = "auditor"
	StageVerifier   StageID = "verifier"
)

// stageLabels is the single authoritative mapping from wire identifier to
// display label. Identifiers missing here are never shown.
var stageLabels = map[StageID]string{
	StageStrategist: "Analyzing Strategy & Guidelines",
	StageAuditor:    "Cross-Referencing Evidence",
	StageVerifier:   "Synthesizing Final Audit Report",
}

// StageLabel returns the display label for id and whether id is known.
func StageLabel(id StageID) (string, bool) {
	label, ok := stageLabels[id]
	return label, ok
}

// StageState is the progress of a single stage. There is no failed state:
// a stage that never completes stays running.
type StageState string

const (
	StageRunning   StageState = "running"
	StageCompleted StageState = "completed"
)

// ParseStageState maps a wire status token to a StageState.
func ParseStageState(token string) (StageState, bool) {
	switch StageState(token) {
	case StageRunning:
		return StageRunning, true
	case StageCompleted:
		return StageCompleted, true
	default:
		return "", false
	}
}

// Stage is one entry of an assistant turn's progress list.
type Stage struct {
	Name  string
	State StageState
}

// UpsertStage returns stages with the entry for id set to state. Unknown
// identifiers leave the list untouched. An existing entry keeps its
// position; a new one is appended. The input slice is never modified.
func UpsertStage(stages []Stage, id StageID, state StageState) []Stage {
	name, ok := StageLabel(id)
	if !ok {
		return stages
	}
	for i, s := range stages {
		if s.Name != name {
			continue
		}
		if s.State == state {
			return stages
		}
		out := make([]Stage, len(stages))
		copy(out, stages)
		out[i].State = state
		return out
	}
	out := make([]Stage, len(stages), len(stages)+1)
	copy(out, stages)
	return append(out, Stage{Name: name, State: state})
}
