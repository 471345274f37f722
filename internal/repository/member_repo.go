package repository

import (
	"errors"

	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"gorm.io/gorm"
)

// MemberRepository member data access interface
type MemberRepository interface {
	FindByID(id string) (*domain.Member, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// FindByID finds a member by ID
func (r *memberRepository) FindByID(id string) (*domain.Member, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var m domain.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, mapStoreErr(err)
	}
	return &m, nil
}
