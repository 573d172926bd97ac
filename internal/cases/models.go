package cases

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Case is the workflow-bearing entity. CurrentState and Workflow are cached
// projections of the latest transition record and are only ever written
// inside a successful transition's transaction.
type Case struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Number       string    `gorm:"uniqueIndex;not null" json:"number"`
	Type         string    `gorm:"not null" json:"type"`
	Subject      string    `json:"subject"`
	CurrentState string    `gorm:"not null" json:"current_state"`
	Workflow     string    `gorm:"not null;default:'standard'" json:"workflow"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Case) TableName() string { return "cases" }

func (c *Case) GetID() uuid.UUID        { return c.ID }
func (c *Case) GetType() string         { return c.Type }
func (c *Case) GetCurrentState() string { return c.CurrentState }
func (c *Case) GetWorkflow() string     { return c.Workflow }

// CaseTransition is one audit trail row. Rows are append-only; MostRecent
// is the only column ever updated after insert.
type CaseTransition struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_case_transitions_case_sort,unique" json:"case_id"`
	Event        string         `gorm:"not null" json:"event"`
	ToState      string         `gorm:"not null" json:"to_state"`
	ToWorkflow   string         `gorm:"not null" json:"to_workflow"`
	SortKey      int64          `gorm:"not null;index:idx_case_transitions_case_sort,unique" json:"sort_key"`
	MostRecent   bool           `gorm:"not null" json:"most_recent"`
	ActingUserID *uuid.UUID     `gorm:"type:uuid" json:"acting_user_id,omitempty"`
	ActingTeamID *uuid.UUID     `gorm:"type:uuid" json:"acting_team_id,omitempty"`
	TargetUserID *uuid.UUID     `gorm:"type:uuid" json:"target_user_id,omitempty"`
	TargetTeamID *uuid.UUID     `gorm:"type:uuid" json:"target_team_id,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Case         Case           `gorm:"foreignKey:CaseID" json:"-"`
}

func (CaseTransition) TableName() string { return "case_transitions" }
