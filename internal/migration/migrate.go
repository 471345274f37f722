package migration

import (
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"gorm.io/gorm"
)

// Run auto-migrates the messaging tables. Uniqueness constraints on
// (project_id, contractor_id), (project_id, alias) and
// (message_id, recipient_id) come from the model definitions and back the
// conditional-insert paths.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Member{},
		&domain.Project{},
		&domain.Bid{},
		&domain.ContractorAlias{},
		&domain.Message{},
		&domain.MessageRecipient{},
		&domain.MessageAttachment{},
	)
}
