package domain

import "encoding/json"

// Reject is one line of a quarantine stream: the original record verbatim
// plus why it was turned away.
type Reject struct {
	Reason  string          `json:"reason"`
	Kind    ErrorKind       `json:"kind"`
	Missing []string        `json:"missing,omitempty"`
	Detail  map[string]any  `json:"detail,omitempty"`
	Source  RejectSource    `json:"source"`
	Row     json.RawMessage `json:"row"`
}

// RejectSource locates the rejected record in its input stream.
type RejectSource struct {
	Stream string `json:"stream"`
	LineNo int    `json:"line_no"`
}
