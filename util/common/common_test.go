package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorf(t *testing.T) {
	err := NewErrorf("test %d", 123)
	assert.EqualError(t, err, "test 123")
}

func TestNewError(t *testing.T) {
	err := NewError("hello", "world")
	assert.EqualError(t, err, "hello world")
}

func TestFormatTraffic(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1500, "1.46 KB"},
		{2000, "1.95 KB"},
		{2048, "2.00 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3072.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTraffic(tt.input))
		})
	}
}

func TestServiceError(t *testing.T) {
	err := NewServiceError("XraySync.AddClient", ErrConfigMalformed).WithCode(ErrCodeConfigMalformed)
	assert.Equal(t, "[XraySync.AddClient] (CONFIG_MALFORMED) proxy config malformed", err.Error())
	assert.ErrorIs(t, err, ErrConfigMalformed)
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, Wrapf("op", nil, "ignored"))

	err := Wrapf("Argo.Start", ErrTunnelIDNotFound, "tunnel %s", "edge")
	assert.ErrorIs(t, err, ErrTunnelIDNotFound)
	assert.Contains(t, err.Error(), "tunnel edge")
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrNotFound, ErrCodeNotFound},
		{fmt.Errorf("wrapped: %w", ErrAlreadyExists), ErrCodeAlreadyExists},
		{ErrAppliedNotReloaded, ErrCodeAppliedNotReloaded},
		{ErrClientIDCollision, ErrCodeIntegrity},
		{ErrUnsupportedArch, ErrCodeUnsupportedArch},
		{ErrTimeout, ErrCodeTimeout},
		{ErrDecodeFailure, ErrCodeDecodeFailure},
		{NewServiceError("op", errors.New("boom")).WithCode(ErrCodeExternal), ErrCodeExternal},
		{errors.New("other"), ErrCodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, GetErrorCode(tt.err), tt.err.Error())
	}
}

func TestResultOf(t *testing.T) {
	r := ResultOf(nil, "done")
	assert.True(t, r.OK)
	assert.Equal(t, "done", r.Detail)

	r = ResultOf(fmt.Errorf("tunnel edge: %w", ErrAlreadyExists), "done")
	assert.True(t, r.OK)
	assert.Equal(t, ErrCodeAlreadyExists, r.Code)

	stderr := errors.New("Failed to restart xray.service: Unit not found.")
	r = ResultOf(NewServiceError("Reload", stderr).WithCode(ErrCodeExternal), "done")
	assert.False(t, r.OK)
	assert.Equal(t, ErrCodeExternal, r.Code)
	assert.Equal(t, stderr.Error(), r.Detail)
}

func TestRecover(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("handler")
		panic("boom")
	})
}
