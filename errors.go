package subfund

import (
	"errors"
	"fmt"

	"github.com/xraph/subfund/oracle"
	"github.com/xraph/subfund/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("subfund: not found")
	ErrAlreadyExists = errors.New("subfund: already exists")
	ErrInvalidInput  = errors.New("subfund: invalid input")
	ErrUnauthorized  = errors.New("subfund: unauthorized")

	// Protocol errors
	ErrProtocolPaused     = errors.New("subfund: protocol is paused")
	ErrInvalidFee         = errors.New("subfund: invalid protocol fee")
	ErrProtocolNotInit    = errors.New("subfund: protocol not initialized")
	ErrProtocolInitalized = errors.New("subfund: protocol already initialized")

	// Balance errors
	ErrInsufficientFunds = errors.New("subfund: insufficient funds")
	ErrInvalidAmount     = errors.New("subfund: invalid amount")
	ErrBalanceNotFound   = errors.New("subfund: balance not found")

	// Arithmetic errors (aliases of the types package sentinels, so the
	// checked-math layer and the engine report through one taxonomy)
	ErrArithmeticOverflow  = types.ErrOverflow
	ErrArithmeticUnderflow = types.ErrUnderflow

	// Provider and plan errors
	ErrProviderNotFound     = errors.New("subfund: provider not found")
	ErrPlanNotFound         = errors.New("subfund: plan not found")
	ErrPlanInactive         = errors.New("subfund: plan not active")
	ErrPlanFull             = errors.New("subfund: plan subscriber limit reached")
	ErrNameTooLong          = errors.New("subfund: name too long")
	ErrDescriptionTooLong   = errors.New("subfund: description too long")
	ErrURLTooLong           = errors.New("subfund: image url too long")
	ErrInvalidBillingPeriod = errors.New("subfund: invalid billing period")

	// Subscription errors
	ErrSubscriptionNotFound  = errors.New("subfund: subscription not found")
	ErrSubscriptionNotActive = errors.New("subfund: subscription not active")
	ErrSubscriptionExists    = errors.New("subfund: subscription already active")
	ErrCannotSubscribeToOwn  = errors.New("subfund: cannot subscribe to own service")

	// Payment errors
	ErrPaymentNotDue = errors.New("subfund: payment not yet due")

	// Staking errors
	ErrStakeNotFound          = errors.New("subfund: stake position not found")
	ErrStakeInactive          = errors.New("subfund: stake position not active")
	ErrMinStakeNotMet         = errors.New("subfund: minimum stake amount not met")
	ErrClaimTooSoon           = errors.New("subfund: yield claim interval not elapsed")
	ErrNoStakedFunds          = errors.New("subfund: no staked funds")
	ErrInsufficientYieldUnits = errors.New("subfund: insufficient yield-bearing units")

	// Oracle errors (aliases of the oracle package sentinels)
	ErrOracleInvalid = oracle.ErrInvalid
	ErrOracleStale   = oracle.ErrStale

	// Store errors
	ErrStoreNotReady     = errors.New("subfund: store not ready")
	ErrStoreClosed       = errors.New("subfund: store is closed")
	ErrTransactionFailed = errors.New("subfund: transaction failed")
	ErrMigrationFailed   = errors.New("subfund: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("subfund: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "subfund: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("subfund: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrProviderNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrStakeNotFound)
}

// IsBalanceError returns true if the error concerns fund sufficiency or
// arithmetic safety.
func IsBalanceError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrArithmeticOverflow) ||
		errors.Is(err, ErrArithmeticUnderflow) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsOracleError returns true if the error came from the oracle adapter.
func IsOracleError(err error) bool {
	return errors.Is(err, ErrOracleInvalid) || errors.Is(err, ErrOracleStale)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrOracleStale)
}
