package dto

import "time"

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// JobReport summarizes one run of a pipeline job. Counters that do not
// apply to the job stay zero.
type JobReport struct {
	Job           string    `json:"job"`
	RunID         string    `json:"run_id"`
	Trigger       string    `json:"trigger"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Created       int       `json:"created"`
	Queued        int       `json:"queued"`
	SourcesFailed int       `json:"sources_failed"`
	Due           int       `json:"due"`
	Published     int       `json:"published"`
	Failed        int       `json:"failed"`
	Error         string    `json:"error,omitempty"`
}
