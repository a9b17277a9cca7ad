package models

import "time"

// JobState is the lifecycle of a recalculation job.
type JobState string

const (
	JobPending         JobState = "pending"
	JobRunning         JobState = "running"
	JobCompleted       JobState = "completed"
	JobPartiallyFailed JobState = "partially_failed"
	JobCancelled       JobState = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobPartiallyFailed, JobCancelled:
		return true
	}
	return false
}

// RecalculationJob is the persisted audit record of one cascade run.
type RecalculationJob struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WorkspaceID uint       `gorm:"index;not null" json:"workspace_id"`
	Kind        string     `gorm:"type:varchar(32);not null" json:"kind"`
	State       JobState   `gorm:"type:varchar(32);not null" json:"state"`
	Updated     int        `gorm:"not null;default:0" json:"updated"`
	Unchanged   int        `gorm:"not null;default:0" json:"unchanged"`
	Failed      int        `gorm:"not null;default:0" json:"failed"`
	Errors      string     `gorm:"type:text" json:"errors"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
