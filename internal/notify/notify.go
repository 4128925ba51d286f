// Package notify publishes job outcome notifications on two logical
// topics, success and failure.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/async-job-service/internal/storage"
)

// Topic is one of the two logical notification channels
type Topic string

const (
	TopicSuccess Topic = "success"
	TopicFailure Topic = "failure"
)

// Subject is the human readable title carried by drivers that support one
func (t Topic) Subject() string {
	if t == TopicSuccess {
		return "Async Job Completed"
	}
	return "Async Job Failed"
}

// TopicFor maps a terminal status to its topic
func TopicFor(status storage.Status) Topic {
	if status == storage.StatusCompleted {
		return TopicSuccess
	}
	return TopicFailure
}

// Notification is the outcome of one processed job. Reason is set on
// failure only. An empty Action means the job carried none.
type Notification struct {
	JobID  string
	Action string
	Status storage.Status
	Reason string
}

type wireNotification struct {
	JobID  string         `json:"job_id"`
	Action *string        `json:"action"`
	Status storage.Status `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// Encode renders the notification body; an empty action is sent as null
func (n *Notification) Encode() ([]byte, error) {
	wire := wireNotification{
		JobID:  n.JobID,
		Status: n.Status,
		Reason: n.Reason,
	}
	if n.Action != "" {
		action := n.Action
		wire.Action = &action
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return body, nil
}

// Publisher delivers a notification on a topic
type Publisher interface {
	Publish(ctx context.Context, topic Topic, n *Notification) error
}

// Topics binds the logical topics to driver identifiers: routing keys,
// Redis channels or SNS topic ARNs.
type Topics struct {
	Success string
	Failure string
}

// ID returns the configured identifier for a topic
func (t Topics) ID(topic Topic) (string, error) {
	switch topic {
	case TopicSuccess:
		return t.Success, nil
	case TopicFailure:
		return t.Failure, nil
	default:
		return "", fmt.Errorf("unknown notification topic %q", topic)
	}
}
