package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/fwojciec/audit"
)

// RecordKind classifies a parsed record line.
type RecordKind int

const (
	RecordUnrecognized RecordKind = iota // Malformed payload, unknown step or status.
	RecordStage                          // Stage transition.
	RecordFinal                          // Full replacement of the answer text.
	RecordError                          // Application-level error.
	RecordTerminator                     // End of the response.
)

var recordKindNames = [...]string{
	RecordUnrecognized: "unrecognized",
	RecordStage:        "stage",
	RecordFinal:        "final",
	RecordError:        "error",
	RecordTerminator:   "terminator",
}

func (k RecordKind) String() string {
	if k < 0 || int(k) >= len(recordKindNames) {
		return "unknown"
	}
	return recordKindNames[k]
}

// Record is one parsed line. Which fields are set depends on Kind; Payload
// always holds the text after the prefix.
type Record struct {
	Kind    RecordKind
	Stage   audit.StageID
	State   audit.StageState
	Content string
	Message string
	Code    string
	Payload string
}

// ParseLine parses a decoded line. It reports false for blank lines and
// lines without the record prefix, which carry no record at all. Payloads
// that fail to parse yield RecordUnrecognized; ParseLine never fails.
func ParseLine(line string) (Record, bool) {
	payload, ok := strings.CutPrefix(line, recordPrefix)
	if !ok {
		return Record{}, false
	}
	payload = strings.TrimPrefix(payload, " ")
	rec := Record{Payload: payload}

	if strings.TrimSpace(payload) == terminator {
		rec.Kind = RecordTerminator
		return rec, true
	}

	var p apiRecord
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return rec, true
	}

	switch {
	case p.Error != "":
		rec.Kind = RecordError
		rec.Message = p.Error
		rec.Code = p.Code
	case p.Step == finalStep:
		rec.Kind = RecordFinal
		rec.Content = p.Content
	default:
		id := audit.StageID(p.Step)
		if _, known := audit.StageLabel(id); !known {
			return rec, true
		}
		state, known := audit.ParseStageState(p.Status)
		if !known {
			return rec, true
		}
		rec.Kind = RecordStage
		rec.Stage = id
		rec.State = state
	}
	return rec, true
}
