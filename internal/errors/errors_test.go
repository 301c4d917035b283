package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewStorageFailedError("job-1", cause)

	assert.Contains(t, err.Error(), "STORAGE_FAILED")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Same(t, cause, stderrors.Unwrap(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorEngineUnavailable, CodeOf(NewEngineUnavailableError("job-1")))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain error")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestLangPackMissingCarriesDetails(t *testing.T) {
	err := NewLangPackMissingError("job-1", "tha")
	require.NotNil(t, err.Details)
	assert.Equal(t, "tha", err.Details["language"])
	assert.Contains(t, err.Message, "tha")
}

func TestToMap(t *testing.T) {
	err := NewProcessingTimeoutError("job-1", 0, fmt.Errorf("deadline exceeded"))
	m := err.ToMap()

	assert.Equal(t, "PROCESSING_TIMEOUT", m["error_code"])
	assert.Equal(t, "deadline exceeded", m["cause"])
	assert.NotNil(t, m["timestamp"])
}
