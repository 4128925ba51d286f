package domain

import "encoding/json"

// Job is a decoded queue message ready for execution. Data is the request
// body the job was accepted with.
type Job struct {
	JobID  string
	Action Action
	Data   json.RawMessage
}
