package hostfuncs

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_ToJSON(t *testing.T) {
	data := NewInternalError("boom").ToJSON()
	require.NotNil(t, data)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "INTERNAL_ERROR", m["error"])
	assert.Equal(t, "boom", m["message"])
	assert.EqualValues(t, 500, m["code"])
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		resp    ErrorResponse
		kind    string
		message string
		code    int
	}{
		{NewValidationError("bad"), "VALIDATION_ERROR", "bad", 400},
		{NewForbiddenError(FuncKill), "FORBIDDEN", "host function not allowed: ps_kill", 403},
		{NewNotFoundError("nope"), "NOT_FOUND", "unknown host function: nope", 404},
		{NewInternalError("x"), "INTERNAL_ERROR", "x", 500},
		{NewPanicError("oops"), "INTERNAL_ERROR", "panic: oops", 500},
		{NewPanicError(errors.New("err")), "INTERNAL_ERROR", "panic: err", 500},
		{NewPanicError(42), "INTERNAL_ERROR", "panic: panic recovered", 500},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.resp.Error)
			assert.Equal(t, tt.message, tt.resp.Message)
			assert.Equal(t, tt.code, tt.resp.Code)
		})
	}
}

func TestIsErrorResponse(t *testing.T) {
	got, ok := IsErrorResponse(NewNotFoundError("f").ToJSON())
	require.True(t, ok)
	assert.Equal(t, 404, got.Code)

	// Typed responses carry error details as objects, not dispatch errors.
	_, ok = IsErrorResponse([]byte(`{"error":{"type":"io","message":"x"}}`))
	assert.False(t, ok)

	_, ok = IsErrorResponse([]byte(`{"strings":["a"]}`))
	assert.False(t, ok)

	_, ok = IsErrorResponse([]byte(`not json`))
	assert.False(t, ok)
}
