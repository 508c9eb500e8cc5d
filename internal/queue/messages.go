package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

type JobKind string

const (
	JobCollect    JobKind = "collect"
	JobPreprocess JobKind = "preprocess"
)

// JobMessage is one unit of work for billops worker. Collection jobs carry
// the task id created by the API so progress lands on the same task row.
type JobMessage struct {
	Kind           JobKind   `json:"kind"`
	TaskID         string    `json:"task_id,omitempty"`
	Company        string    `json:"company"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	CollectionDate string    `json:"collection_date,omitempty"`
	LicenseCount   int       `json:"license_count,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m *JobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func JobMessageFromJSON(data []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case JobCollect, JobPreprocess:
	default:
		return nil, fmt.Errorf("unknown job kind %q", msg.Kind)
	}
	if msg.Company == "" {
		return nil, fmt.Errorf("job without company")
	}
	return &msg, nil
}
