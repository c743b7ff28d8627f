package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	ClassID    *uuid.UUID `gorm:"type:uuid;index" json:"class_id,omitempty"`
	Class      *Class     `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClassID;references:ID" json:"class,omitempty"`
	TaskTypeID *uuid.UUID `gorm:"type:uuid;index" json:"task_type_id,omitempty"`
	TaskType   *TaskType  `gorm:"constraint:OnDelete:SET NULL;foreignKey:TaskTypeID;references:ID" json:"task_type,omitempty"`

	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description,omitempty"`
	DueDate     *time.Time `gorm:"column:due_date;index" json:"due_date,omitempty"`
	Priority    string     `gorm:"column:priority" json:"priority,omitempty"`
	Completed   bool       `gorm:"column:completed;not null;default:false" json:"completed"`

	Grade       *float64 `gorm:"column:grade" json:"grade,omitempty"`
	Points      *float64 `gorm:"column:points" json:"points,omitempty"`
	TotalPoints *float64 `gorm:"column:total_points" json:"total_points,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Task) TableName() string { return "task" }

// GradePercentage derives a 0-100 percentage when both point fields are set.
func (t *Task) GradePercentage() *float64 {
	if t == nil || t.Points == nil || t.TotalPoints == nil || *t.TotalPoints == 0 {
		return nil
	}
	p := *t.Points / *t.TotalPoints * 100
	return &p
}
