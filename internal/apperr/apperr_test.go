package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", Validation.New("price must be a number"), "price must be a number"},
		{"not found", NotFound.New("order #12 not found"), "order #12 not found"},
		{"unauthorized hides target", Unauthorized.New("order 12 belongs to user 7"), genericForbidden},
		{"upstream keeps raw message", Upstream.New("gateway HTTP 401: {\"Message\":\"unauthorized\"}"), "gateway HTTP 401: {\"Message\":\"unauthorized\"}"},
		{"unclassified", errors.New("pq: connection refused"), genericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestClassesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("apply decision: %w", Conflict.New("order already PAID"))

	assert.True(t, IsConflict(err))
	assert.False(t, IsConflict(nil))
	assert.False(t, IsConflict(Validation.New("x")))
	assert.True(t, NotFound.Has(fmt.Errorf("lookup: %w", NotFound.New("voucher"))))
}

func TestClassified(t *testing.T) {
	assert.True(t, Classified(Validation.New("bad")))
	assert.True(t, Classified(fmt.Errorf("wrapped: %w", NotFound.New("gone"))))
	assert.False(t, Classified(errors.New("pq: connection refused")))
	assert.False(t, Classified(nil))
}
