package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	ErrImport            = errors.New("import failed")
)

// NotFound wraps ErrNotFound for an entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// AccessDenied wraps ErrAccessDenied for an entity owned by another merchant.
func AccessDenied(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrAccessDenied)
}

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field       string
	Description string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors collects several field errors.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (errs ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Err returns nil when empty so callers can return it directly.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Aggregate names the balance that would have gone negative.
type Aggregate string

const (
	AggregateLedger  Aggregate = "client_ledger"
	AggregateAccount Aggregate = "trust_account"
)

// InsufficientFundsError reports which balance a posting or reversal would overdraw.
type InsufficientFundsError struct {
	Aggregate Aggregate
	ID        string
	Attempted decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s %s: attempted %s, available %s",
		e.Aggregate, e.ID, e.Attempted.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// TransitionError reports a disallowed status change.
type TransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: transition from %q to %q is not allowed", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CheckMerchant returns AccessDenied when an entity belongs to another merchant.
func CheckMerchant(entity, entityID, owner, merchantID string) error {
	if owner != merchantID {
		return AccessDenied(entity, entityID)
	}
	return nil
}
