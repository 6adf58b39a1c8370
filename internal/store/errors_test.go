package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{404, KindNotFound},
		{403, KindForbidden},
		{401, KindForbidden},
		{408, KindTransient},
		{429, KindTransient},
		{500, KindTransient},
		{502, KindTransient},
		{503, KindTransient},
		{400, KindUnexpected},
		{200, KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.status))
		})
	}
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	cause := NewError(KindForbidden, "metadata", "obj-1", errors.New("denied"))
	wrapped := fmt.Errorf("resolving object: %w", cause)

	assert.Equal(t, KindForbidden, KindOf(wrapped))
}

func TestKindOfDefaults(t *testing.T) {
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnexpected, KindOf(nil))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewError(KindTransient, "list", "c-1", nil)))
	assert.True(t, Retryable(NewError(KindTimeout, "download", "obj-1", nil)))

	assert.False(t, Retryable(NewError(KindNotFound, "metadata", "obj-1", nil)))
	assert.False(t, Retryable(NewError(KindForbidden, "metadata", "obj-1", nil)))
	assert.False(t, Retryable(NewError(KindTransientExhausted, "download", "obj-1", nil)))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestErrorStringNamesOperationAndKind(t *testing.T) {
	err := NewError(KindTransient, "download", "obj-9", errors.New("503"))
	assert.Equal(t, "download obj-9: transient: 503", err.Error())

	bare := NewError(KindNotFound, "metadata", "obj-9", nil)
	assert.Equal(t, "metadata obj-9: not_found", bare.Error())
}
