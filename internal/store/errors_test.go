package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("load: %w", ErrNotFound), true},
		{"artifact not found", ErrArtifactNotFound, true},
		{"task not found", fmt.Errorf("update: %w", ErrTaskNotFound), true},
		{"duplicate", ErrDuplicate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrNotFound))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("artifact", "append", "jsonb update failed", cause)

	assert.Equal(t, "append operation on artifact failed: jsonb update failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("task", "create", "missing type", nil)
	assert.Equal(t, "create operation on task failed: missing type", bare.Error())
}
