package models

import "time"

// Task statuses used by the lifecycle detector.
const (
	TaskStatusBacklog    = "backlog"
	TaskStatusReady      = "ready"
	TaskStatusInProgress = "in_progress"
	TaskStatusBlocked    = "blocked"
	TaskStatusCompleted  = "completed"
)

// Task is a unit of work tracked by the project manager.
type Task struct {
	BaseModel

	Title   string     `gorm:"type:varchar(255);not null" json:"title"`
	Status  string     `gorm:"type:varchar(32);not null;default:'backlog';index" json:"status"`
	DueDate *time.Time `gorm:"index" json:"due_date"`

	FullKitItems []FullKitItem `gorm:"foreignKey:TaskID" json:"full_kit_items,omitempty"`
}

// FullKitItem is one prerequisite that must be satisfied before a task can
// start without interruption.
type FullKitItem struct {
	BaseModel

	TaskID      string `gorm:"type:uuid;not null;index" json:"task_id"`
	Description string `gorm:"type:varchar(255);not null" json:"description"`
	IsSatisfied bool   `gorm:"default:false" json:"is_satisfied"`
}
