package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hearthbid/hearthbid-backend/internal/common"
	"gorm.io/gorm"
)

// storeTimeout bounds every call to the backing store. A slow store surfaces
// as ErrStoreUnavailable instead of hanging the caller; retries are the
// caller's decision, never the adapter's.
const storeTimeout = 5 * time.Second

// storeCtx returns a bounded context for one store call
func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// mapStoreErr translates low-level gorm/driver errors into the adapter
// taxonomy. Handlers and services never see raw storage errors.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}
