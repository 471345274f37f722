package domain

import "time"

// ContractorAlias maps a contractor to their stable per-project display
// alias (contractor_aliases table). Aliases hide real contractor identities
// from the homeowner until a bid is accepted. Rows are insert-only: an alias
// is never reassigned or reused within a project.
type ContractorAlias struct {
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	ProjectID    string    `gorm:"column:project_id;primaryKey;size:36;uniqueIndex:uq_project_alias,priority:1" json:"project_id"`
	ContractorID string    `gorm:"column:contractor_id;primaryKey;size:36" json:"contractor_id"`
	Alias        string    `gorm:"column:alias;size:4;uniqueIndex:uq_project_alias,priority:2" json:"alias"`
}

func (ContractorAlias) TableName() string {
	return "contractor_aliases"
}

// ProjectParticipant is the homeowner-facing view of one aliased contractor:
// alias joined with profile data and the contractor's bid, if any.
type ProjectParticipant struct {
	ContractorID string   `json:"contractor_id"`
	Alias        string   `json:"alias"`
	DisplayName  string   `json:"display_name"`
	BidAmount    *float64 `json:"bid_amount,omitempty"`
}
