package carrier

import "github.com/fulfillment/backend/internal/domain/shared"

var (
	ErrStoreKeyRequired   = shared.NewDomainError(shared.CodeInvalidInput, "store key is required")
	ErrStoreNotFound      = shared.NewDomainError(shared.CodeNotFound, "store not found")
	ErrStoreInactive      = shared.NewDomainError(shared.CodeInvalidState, "store is not active")
	ErrCarrierNotFound    = shared.NewDomainError(shared.CodeNotFound, "carrier not found")
	ErrCarrierInactive    = shared.NewDomainError(shared.CodeInvalidState, "carrier is not active")
	ErrInvalidDirection   = shared.NewDomainError(shared.CodeInvalidInput, "direction must be up or down")
	ErrMissingCredentials = shared.NewDomainError(shared.CodeConfiguration, "store credentials are missing")
	ErrSyncInProgress     = shared.NewDomainError(shared.CodeSyncInProgress, "a sync is already running for this store")
	ErrInvalidEmptyPolicy = shared.NewDomainError(shared.CodeConfiguration, "empty upstream policy must be drop or skip")
)

