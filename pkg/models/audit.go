package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Trace action names.
const (
	TraceMerge      = "MERGE"
	TraceReKey      = "REKEY"
	TraceSplit      = "SPLIT"
	TraceDelete     = "DELETE"
	TraceReclassify = "RECLASSIFY"
	TraceRuleEdit   = "RULE_EDIT"
)

// TraceAction is an auditable record of a merge, re-key or admin edit.
type TraceAction struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	EntityType     string    `json:"entity_type" gorm:"type:varchar(32);not null;index:idx_trace_entity"`
	EntityID       uuid.UUID `json:"entity_id" gorm:"type:uuid;not null;index:idx_trace_entity"`
	Action         string    `json:"action" gorm:"type:varchar(32);not null"`
	Detail         string    `json:"detail,omitempty" gorm:"type:text"`
	ActionDateTime time.Time `json:"action_date_time" gorm:"not null;index"`
}

func (TraceAction) TableName() string { return "trace_actions" }

func (t *TraceAction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// JobStatus is the outcome of a scheduled job run.
type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// JobRun records one execution of a scheduled job.
type JobRun struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Job        string     `json:"job" gorm:"type:varchar(64);not null;index:idx_job_runs_job_status"`
	Status     JobStatus  `json:"status" gorm:"type:varchar(16);not null;index:idx_job_runs_job_status"`
	StartedAt  time.Time  `json:"started_at" gorm:"not null;index"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty" gorm:"type:text"`
	Fetched    int        `json:"fetched"`
	Ingested   int        `json:"ingested"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
}

func (JobRun) TableName() string { return "job_runs" }

func (j *JobRun) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Anime{},
		&EpisodeMapping{},
		&EpisodeVariant{},
		&Rule{},
		&Simulcast{},
		&AnimeSimulcast{},
		&AnimeFollow{},
		&EpisodeFollow{},
		&TraceAction{},
		&JobRun{},
	}
}
