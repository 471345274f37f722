package repository

import (
	"errors"

	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AliasRepository contractor-alias persistence. Alias rows are insert-only
// and protected by two uniqueness constraints: (project_id, contractor_id)
// and (project_id, alias).
type AliasRepository interface {
	Find(projectID, contractorID string) (*domain.ContractorAlias, error)
	// TryInsert performs a conditional insert; it reports false without error
	// when either uniqueness constraint already holds (the caller re-reads).
	TryInsert(alias *domain.ContractorAlias) (bool, error)
	CountByProject(projectID string) (int64, error)
	ListByProject(projectID string) ([]*domain.ContractorAlias, error)
	AliasMap(projectID string) (map[string]string, error)
	ListParticipants(projectID string) ([]domain.ProjectParticipant, error)
}

type aliasRepository struct {
	db *gorm.DB
}

// NewAliasRepository creates a new AliasRepository
func NewAliasRepository(db *gorm.DB) AliasRepository {
	return &aliasRepository{db: db}
}

// Find returns the alias row for a contractor, or common.ErrNotFound
func (r *aliasRepository) Find(projectID, contractorID string) (*domain.ContractorAlias, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var a domain.ContractorAlias
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND contractor_id = ?", projectID, contractorID).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, mapStoreErr(err)
	}
	return &a, nil
}

// TryInsert inserts the alias row unless a conflicting row exists.
// A lost race never overwrites the winner's row.
func (r *aliasRepository) TryInsert(alias *domain.ContractorAlias) (bool, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(alias)
	if result.Error != nil {
		return false, mapStoreErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountByProject returns how many aliases the project has assigned
func (r *aliasRepository) CountByProject(projectID string) (int64, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ContractorAlias{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}

// ListByProject returns alias rows in alias order ("A".."Z" before "AA")
func (r *aliasRepository) ListByProject(projectID string) ([]*domain.ContractorAlias, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var aliases []*domain.ContractorAlias
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("LENGTH(alias), alias").
		Find(&aliases).Error
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return aliases, nil
}

// AliasMap returns contractor_id -> alias; contractors without an alias are absent
func (r *aliasRepository) AliasMap(projectID string) (map[string]string, error) {
	aliases, err := r.ListByProject(projectID)
	if err != nil {
		return nil, err
	}

	m := make(map[string]string, len(aliases))
	for _, a := range aliases {
		m[a.ContractorID] = a.Alias
	}
	return m, nil
}

// ListParticipants joins alias rows with contractor profiles and their bid
// amount on the project, ordered by alias
func (r *aliasRepository) ListParticipants(projectID string) ([]domain.ProjectParticipant, error) {
	aliases, err := r.ListByProject(projectID)
	if err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return []domain.ProjectParticipant{}, nil
	}

	ids := make([]string, len(aliases))
	for i, a := range aliases {
		ids[i] = a.ContractorID
	}

	ctx, cancel := storeCtx()
	defer cancel()

	var members []*domain.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, mapStoreErr(err)
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	// Latest bid per contractor on this project
	var bids []*domain.Bid
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND contractor_id IN ?", projectID, ids).
		Order("created_at").
		Find(&bids).Error; err != nil {
		return nil, mapStoreErr(err)
	}
	amounts := make(map[string]float64, len(bids))
	for _, b := range bids {
		amounts[b.ContractorID] = b.Amount
	}

	participants := make([]domain.ProjectParticipant, len(aliases))
	for i, a := range aliases {
		p := domain.ProjectParticipant{
			ContractorID: a.ContractorID,
			Alias:        a.Alias,
			DisplayName:  names[a.ContractorID],
		}
		if amount, ok := amounts[a.ContractorID]; ok {
			v := amount
			p.BidAmount = &v
		}
		participants[i] = p
	}
	return participants, nil
}
