// Package gemini uploads audit documents to the Gemini Files API.
//
// The audit service reads reference and target documents from Gemini file
// storage. Store uploads local files, waits until Gemini has processed
// them and returns the [audit.Document] descriptors that go into a
// request.
package gemini

import "time"

const (
	statusUploaded      = "uploaded"
	defaultMIMEType     = "application/octet-stream"
	defaultPollInterval = time.Second
	defaultTimeout      = 2 * time.Minute
	defaultConcurrency  = 4
)
