package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("decide: %w", &InvalidTransitionError{From: "approved", Action: "decide"})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrAppealNotAllowed))

	var ite *InvalidTransitionError
	assert.True(t, errors.As(err, &ite))
	assert.Equal(t, "approved", ite.From)

	appealErr := &AppealNotAllowedError{FlagID: 7, Reason: "flag is not resolved"}
	assert.True(t, errors.Is(appealErr, ErrAppealNotAllowed))
	assert.Contains(t, appealErr.Error(), "flag 7")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("flag 1: %w", ErrNotFound), http.StatusNotFound},
		{"invalid transition", &InvalidTransitionError{From: "rejected", Action: "decide"}, http.StatusConflict},
		{"conflict", ErrConflict, http.StatusConflict},
		{"appeal resolved", ErrAppealAlreadyResolved, http.StatusConflict},
		{"appeal not allowed", &AppealNotAllowedError{FlagID: 1, Reason: "pending appeal exists"}, http.StatusUnprocessableEntity},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"analyzer", ErrAnalyzerUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}
