// Package pipeline implements [audit.Pipeline] for the audit service's
// streaming chat endpoint.
//
// The response body is a sequence of newline-delimited records. Each record
// is "data: " followed by either a JSON payload or the literal terminator
// "[DONE]". Bytes are decoded incrementally by a [Decoder] so that records
// split across network reads are reassembled before [ParseLine] sees them.
package pipeline

const (
	streamPath     = "/chat/stream"
	recordPrefix   = "data:"
	terminator     = "[DONE]"
	finalStep      = "final"
	readChunkSize  = 4096
	maxErrorBodyKB = 64
)

// apiRequest is the JSON body sent to the chat stream endpoint.
type apiRequest struct {
	Message        string       `json:"message"`
	Scenario       string       `json:"scenario"`
	SessionID      string       `json:"session_id"`
	ReferenceFiles []apiFile    `json:"reference_files"`
	TargetFiles    []apiFile    `json:"target_files"`
	History        []apiHistory `json:"history"`
}

type apiFile struct {
	Name   string `json:"name"`
	URI    string `json:"uri"`
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
}

type apiHistory struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiRecord is the JSON payload of one record line. Code is the optional
// structured error kind accompanying Error.
type apiRecord struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Content string `json:"content"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}
