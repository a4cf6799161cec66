package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// storeError turns repository sentinels into the API error taxonomy.
// Integrity violations surface as validation errors; lookups as not found.
func storeError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	details := map[string]any{}
	if constraint := repository.ConstraintName(err); constraint != "" {
		details["constraint"] = constraint
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewValidationError(fmt.Sprintf("%s already exists", resource), details)
	case errors.Is(err, repository.ErrForeignKey):
		return apperrors.NewValidationError("referenced record does not exist", details)
	case errors.Is(err, repository.ErrCheckViolation):
		return apperrors.NewValidationError(fmt.Sprintf("invalid %s value", resource), details)
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperrors.NewValidationError("quantity cannot become negative", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}

func invalidField(field, message string) error {
	return apperrors.NewFieldError(field, message)
}
