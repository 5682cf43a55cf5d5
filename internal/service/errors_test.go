package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/assistant"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Code
	}{
		{"typed passes through", apperr.New(apperr.CodeForbidden, "no"), apperr.CodeForbidden},
		{"shortage", &inventory.ShortageError{ProductID: "p", Requested: 3, Available: 1}, apperr.CodeInsufficientStock},
		{"store shortage", fmt.Errorf("product p: %w", store.ErrInsufficientStock), apperr.CodeInsufficientStock},
		{"not found", fmt.Errorf("product p: %w", store.ErrNotFound), apperr.CodeNotFound},
		{"conflict", store.ErrConflict, apperr.CodeConflict},
		{"invalid", store.ErrInvalidInput, apperr.CodeValidation},
		{"assistant disabled", assistant.ErrDisabled, apperr.CodeDependency},
		{"model failure", fmt.Errorf("%w: quota", assistant.ErrModel), apperr.CodeDependency},
		{"deadline", context.DeadlineExceeded, apperr.CodeDependency},
		{"unknown", errors.New("boom"), apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err).Code())
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, MaxListLimit, clampLimit(MaxListLimit+1))
}
