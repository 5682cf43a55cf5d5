package service

import (
	"context"
	"errors"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/assistant"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/store"
)

// Classify maps any error from the layers below onto an *apperr.Error.
func Classify(err error) *apperr.Error {
	if err == nil {
		return nil
	}
	if typed := apperr.As(err); typed != nil {
		return typed
	}

	var shortage *inventory.ShortageError
	switch {
	case errors.As(err, &shortage):
		return apperr.Wrap(apperr.CodeInsufficientStock, err, shortage.Error()).WithDetails(map[string]any{
			"product_id": shortage.ProductID,
			"name":       shortage.Name,
			"requested":  shortage.Requested,
			"available":  shortage.Available,
		})
	case errors.Is(err, store.ErrInsufficientStock):
		return apperr.Wrap(apperr.CodeInsufficientStock, err, "insufficient stock")
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "resource not found")
	case errors.Is(err, store.ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, err, "conflict detected")
	case errors.Is(err, store.ErrInvalidInput):
		return apperr.Wrap(apperr.CodeValidation, err, err.Error())
	case errors.Is(err, assistant.ErrDisabled):
		return apperr.Wrap(apperr.CodeDependency, err, "assistant is not configured")
	case errors.Is(err, assistant.ErrModel):
		return apperr.Wrap(apperr.CodeDependency, err, "assistant is unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.CodeDependency, err, "upstream timed out")
	default:
		return apperr.Wrap(apperr.CodeInternal, err, "internal server error")
	}
}

func classified(err error) error {
	if err == nil {
		return nil
	}
	return Classify(err)
}
