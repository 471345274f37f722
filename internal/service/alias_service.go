package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/internal/repository"
	pkgcache "github.com/hearthbid/hearthbid-backend/pkg/cache"
)

// maxAssignAttempts bounds the conflict-retry loop in EnsureAlias. Each
// retry means another contractor won the same token concurrently.
const maxAssignAttempts = 5

// AliasService is the alias registry: a deterministic, stable mapping from
// contractor identity to a short display alias, scoped per project.
type AliasService interface {
	EnsureAlias(projectID, contractorID string) (string, error)
	AliasMap(projectID string) (map[string]string, error)
	ListParticipants(projectID string) ([]domain.ProjectParticipant, error)
}

type aliasService struct {
	repo     repository.AliasRepository
	projects repository.ProjectRepository
	messages repository.MessageRepository
	cache    pkgcache.Service
}

// NewAliasService creates a new AliasService
func NewAliasService(repo repository.AliasRepository, projects repository.ProjectRepository, messages repository.MessageRepository, cache pkgcache.Service) AliasService {
	return &aliasService{
		repo:     repo,
		projects: projects,
		messages: messages,
		cache:    cache,
	}
}

// AliasToken returns the nth alias in sequence: "A".."Z", then "AA", "AB", ...
func AliasToken(n int) string {
	token := ""
	n++
	for n > 0 {
		n--
		token = string(rune('A'+n%26)) + token
		n /= 26
	}
	return token
}

// EnsureAlias returns the contractor's alias, assigning the next unused
// token on first contact. Before assigning, contractors with an earlier
// un-aliased interaction (bid or message) take their tokens first, so
// tokens always follow first-interaction order no matter who speaks first.
// Assignment is a conditional insert keyed on (project_id, contractor_id);
// a lost race re-reads the winner's row and never overwrites it. A
// client-side fallback alias is never produced: that would desynchronize
// displays across sessions.
func (s *aliasService) EnsureAlias(projectID, contractorID string) (string, error) {
	existing, err := s.repo.Find(projectID, contractorID)
	if err == nil {
		return existing.Alias, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	if _, err := s.backfillAliases(projectID); err != nil {
		return "", err
	}
	// The backfill may have covered this contractor already
	existing, err = s.repo.Find(projectID, contractorID)
	if err == nil {
		return existing.Alias, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	return s.assignAlias(projectID, contractorID)
}

// assignAlias claims the next unused token for a contractor with no row yet
func (s *aliasService) assignAlias(projectID, contractorID string) (string, error) {
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		count, err := s.repo.CountByProject(projectID)
		if err != nil {
			return "", err
		}
		token := AliasToken(int(count))

		inserted, err := s.repo.TryInsert(&domain.ContractorAlias{
			ProjectID:    projectID,
			ContractorID: contractorID,
			Alias:        token,
			CreatedAt:    time.Now(),
		})
		if err != nil {
			return "", err
		}
		if inserted {
			s.invalidateParticipants(projectID)
			return token, nil
		}

		// Lost a race. Either another call assigned this contractor a row,
		// or another contractor claimed the token first.
		existing, err := s.repo.Find(projectID, contractorID)
		if err == nil {
			return existing.Alias, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return "", err
		}
		// Token collision: re-count and try the next one.
	}

	return "", fmt.Errorf("%w: alias assignment kept conflicting", common.ErrStoreUnavailable)
}

// AliasMap bulk-fetches contractor_id -> alias for rendering a thread list.
// Contractors with no alias yet are absent; call EnsureAlias before first
// display of a brand-new contractor.
func (s *aliasService) AliasMap(projectID string) (map[string]string, error) {
	return s.repo.AliasMap(projectID)
}

// ListParticipants returns the project's aliased contractors with profile
// data and bid amounts, ordered by alias. Contractors that have interacted
// (bid or message) but have no alias yet are assigned one first, in
// first-interaction order, so the listing is always complete. This is the
// single source for broadcast recipient sets.
func (s *aliasService) ListParticipants(projectID string) ([]domain.ProjectParticipant, error) {
	// Backfill before trusting the cache: a fresh bid must show up in the
	// next listing, not after the cache entry expires.
	assigned, err := s.backfillAliases(projectID)
	if err != nil {
		return nil, err
	}
	if assigned > 0 {
		s.invalidateParticipants(projectID)
	} else if s.cache != nil {
		var cached []domain.ProjectParticipant
		if err := s.cache.GetParticipants(context.Background(), projectID, &cached); err == nil {
			return cached, nil
		}
	}

	participants, err := s.repo.ListParticipants(projectID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetParticipants(context.Background(), projectID, participants) //nolint:errcheck
	}
	return participants, nil
}

// backfillAliases assigns aliases to every contractor that has interacted
// with the project but has none yet, ordered by earliest interaction
// (first bid or first message, whichever came first). Returns how many
// aliases it assigned.
func (s *aliasService) backfillAliases(projectID string) (int, error) {
	assigned, err := s.repo.AliasMap(projectID)
	if err != nil {
		return 0, err
	}

	bidTimes, err := s.projects.FirstBidTimes(projectID)
	if err != nil {
		return 0, err
	}
	msgTimes, err := s.messages.FirstMessageTimes(projectID)
	if err != nil {
		return 0, err
	}

	ownerID, err := s.projects.OwnerID(projectID)
	if err != nil && !errors.Is(err, common.ErrProjectNotFound) {
		return 0, err
	}

	first := make(map[string]time.Time, len(bidTimes)+len(msgTimes))
	for id, t := range bidTimes {
		first[id] = t
	}
	for id, t := range msgTimes {
		if id == ownerID {
			continue // the homeowner is never aliased
		}
		if existing, ok := first[id]; !ok || t.Before(existing) {
			first[id] = t
		}
	}

	var missing []string
	for id := range first {
		if _, ok := assigned[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	sort.Slice(missing, func(i, j int) bool {
		ti, tj := first[missing[i]], first[missing[j]]
		if ti.Equal(tj) {
			return missing[i] < missing[j]
		}
		return ti.Before(tj)
	})

	for _, id := range missing {
		if _, err := s.assignAlias(projectID, id); err != nil {
			return 0, err
		}
	}
	return len(missing), nil
}

func (s *aliasService) invalidateParticipants(projectID string) {
	if s.cache != nil {
		s.cache.InvalidateParticipants(context.Background(), projectID) //nolint:errcheck
	}
}
