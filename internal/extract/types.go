// internal/extract/types.go
package extract

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/quizlens/client/internal/domain/question"
)

// OptField is an optional string field as the extraction backend encodes
// it. The backend has three spellings for "absent": JSON null, a missing
// key, and a sentinel object {"NULL": true}. All of them decode to the
// absent state here, so nothing downstream ever sees the sentinel.
type OptField struct {
	present bool
	value   string
}

// Present reports whether the field carried an actual value.
func (f OptField) Present() bool { return f.present }

// Value returns the field's value, or "" when absent.
func (f OptField) Value() string {
	if !f.present {
		return ""
	}
	return f.value
}

// FieldOf builds a present OptField; used by tests and mapping code.
func FieldOf(v string) OptField { return OptField{present: true, value: v} }

func (f *OptField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = OptField{}
		return nil
	}
	if data[0] == '{' {
		// Sentinel object. Tolerate any casing of the NULL key; anything
		// else in object position is still "no value".
		*f = OptField{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = OptField{present: true, value: s}
	return nil
}

func (f OptField) MarshalJSON() ([]byte, error) {
	if !f.present {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// ExtractedOption is one answer choice as returned by the extraction job.
type ExtractedOption struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// ExtractedItem is one recognized question in a job result.
type ExtractedItem struct {
	Text       string            `json:"text"`
	Options    []ExtractedOption `json:"options"`
	Topic      OptField          `json:"topic"`
	Difficulty OptField          `json:"difficulty"`
}

// Normalize maps an extracted item into the question shape used downstream.
// Sentinel fields become empty strings; the difficulty enum is folded into
// its canonical form.
func (it ExtractedItem) Normalize() question.Question {
	opts := make([]question.Option, len(it.Options))
	for i, o := range it.Options {
		opts[i] = question.Option{Label: o.Label, Text: o.Text, Correct: o.Correct}
	}
	return question.Question{
		Text:       it.Text,
		Options:    opts,
		Topic:      it.Topic.Value(),
		Difficulty: question.ParseDifficulty(it.Difficulty.Value()),
	}
}

// JobState is the state of a remote extraction job as observed by this
// client.
type JobState string

const (
	JobPending   JobState = "pending"
	JobReady     JobState = "ready"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Job mirrors the server-side extraction job. The identifier is issued on
// submission and never changes; only the remote service mutates the job.
// The poller returns it once State is JobReady.
type Job struct {
	ID        string
	CreatedAt time.Time
	State     JobState
	Items     []ExtractedItem
}

// Wire shapes. The upload response's processed_image and lambda_message are
// advisory: their absence is logged, never treated as failure.
type uploadResponse struct {
	Message        string `json:"message"`
	JobID          string `json:"job_id"`
	ProcessedImage string `json:"processed_image"`
	LambdaMessage  string `json:"lambda_message"`
}

type resultResponse struct {
	Message string     `json:"message"`
	Data    resultData `json:"data"`
}

type resultData struct {
	JobID      string          `json:"job_id"`
	Items      []ExtractedItem `json:"items"`
	ItemsCount int             `json:"items_count"`
}
