package domain

import "time"

// Project represents a home-improvement project posted by a homeowner
// (projects table). The messaging core only reads its ID and owner.
type Project struct {
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"column:owner_id;size:36;index" json:"owner_id"`
	Title     string    `gorm:"column:title;size:255" json:"title"`
	Status    string    `gorm:"column:status;size:20" json:"status"`
}

func (Project) TableName() string {
	return "projects"
}

// Bid represents a contractor's bid on a project (bids table).
// Read-only for the messaging core: first-bid timestamps drive alias order.
type Bid struct {
	CreatedAt    time.Time `gorm:"column:created_at;index" json:"created_at"`
	ID           string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	ProjectID    string    `gorm:"column:project_id;size:36;index" json:"project_id"`
	ContractorID string    `gorm:"column:contractor_id;size:36;index" json:"contractor_id"`
	Amount       float64   `gorm:"column:amount" json:"amount"`
	Status       string    `gorm:"column:status;size:20" json:"status"`
}

func (Bid) TableName() string {
	return "bids"
}
