package repository

import (
	"errors"
	"time"

	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"gorm.io/gorm"
)

// ProjectRepository read-only project/bid access for the messaging core
type ProjectRepository interface {
	FindByID(id string) (*domain.Project, error)
	OwnerID(projectID string) (string, error)
	// FirstBidTimes returns each bidding contractor's earliest bid time on the project
	FirstBidTimes(projectID string) (map[string]time.Time, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// FindByID finds a project by ID
func (r *projectRepository) FindByID(id string) (*domain.Project, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var p domain.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrProjectNotFound
		}
		return nil, mapStoreErr(err)
	}
	return &p, nil
}

// OwnerID returns the homeowner's member ID for a project
func (r *projectRepository) OwnerID(projectID string) (string, error) {
	p, err := r.FindByID(projectID)
	if err != nil {
		return "", err
	}
	return p.OwnerID, nil
}

// FirstBidTimes returns contractor_id -> earliest bid created_at. The minimum
// is computed here rather than in SQL: date aggregates do not round-trip
// uniformly across the mysql and sqlite drivers.
func (r *projectRepository) FirstBidTimes(projectID string) (map[string]time.Time, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var bids []domain.Bid
	err := r.db.WithContext(ctx).
		Select("contractor_id", "created_at").
		Where("project_id = ?", projectID).
		Find(&bids).Error
	if err != nil {
		return nil, mapStoreErr(err)
	}

	times := make(map[string]time.Time, len(bids))
	for _, b := range bids {
		if t, ok := times[b.ContractorID]; !ok || b.CreatedAt.Before(t) {
			times[b.ContractorID] = b.CreatedAt
		}
	}
	return times, nil
}
