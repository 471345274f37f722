package domain

import "time"

// Member roles
const (
	RoleHomeowner  = "homeowner"
	RoleContractor = "contractor"
)

// Member represents a registered user (members table)
type Member struct {
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	ID          string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	DisplayName string    `gorm:"column:display_name;size:100" json:"display_name"`
	Email       string    `gorm:"column:email;size:255;index" json:"email"`
	Role        string    `gorm:"column:role;size:20;index" json:"role"`
}

func (Member) TableName() string {
	return "members"
}

// IsHomeowner reports whether the member posts projects
func (m *Member) IsHomeowner() bool {
	return m.Role == RoleHomeowner
}
