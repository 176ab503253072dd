package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors let callers branch on specific business failures.
var (
	ErrInvalidQuantity         = errors.New("quantity must be a positive integer")
	ErrEmptyComposition        = errors.New("compound prescription has no ingredients")
	ErrInvalidStockValue       = errors.New("stock value must not be negative")
	ErrDuplicateMedicine       = errors.New("medicine already counted in this session")
	ErrMedicineNotFound        = errors.New("medicine not found")
	ErrPatientNotFound         = errors.New("patient not found")
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidStatusTransition = errors.New("payment status transition not allowed")
	ErrInvalidReason           = errors.New("unknown discrepancy reason")
	ErrInvalidCategory         = errors.New("unknown medicine category")
	ErrInvalidForm             = errors.New("unknown dispensed form")
	ErrNameRequired            = errors.New("name is required")
	ErrDosageRequired          = errors.New("dosage instruction is required")
	ErrInvalidDate             = errors.New("date must be in YYYY-MM-DD format")
	ErrSessionConfirmed        = errors.New("opname session already confirmed")
	ErrEmptySession            = errors.New("opname session has no lines")
	ErrLineNotFound            = errors.New("opname line not found")
	ErrSessionNotFound         = errors.New("opname session not found")
)

// ValidationError wraps a sentinel error with human-readable detail.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MissingReasonError reports opname lines that carry a non-zero
// difference without an operator reason.
type MissingReasonError struct {
	MedicineIDs []int64
}

func (e *MissingReasonError) Error() string {
	return fmt.Sprintf("reason required for medicines with stock differences: %v", e.MedicineIDs)
}
