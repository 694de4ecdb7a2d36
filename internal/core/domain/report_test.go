package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorReport_JSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	fe := NewHTTPError("coingecko", 503, "upstream unavailable")
	original := NewErrorReport("price-api", fe, 4, at)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ErrorReport
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
	assert.True(t, original.Timestamp.Equal(decoded.Timestamp))

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestErrorReport_WireFormat(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := NewErrorReport("price-api", NewValidationError("B", "Invalid XRP price structure"), 0, at)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "price-api", raw["service"])
	assert.Equal(t, "2026-01-02T03:04:05Z", raw["timestamp"])
	assert.Equal(t, "VALIDATION_ERROR", raw["errorCode"])
	assert.Equal(t, float64(0), raw["consecutiveFailures"])

	ctx, ok := raw["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "B", ctx["endpoint"])
	assert.Equal(t, "Invalid XRP price structure", ctx["reason"])
	_, hasStatus := ctx["status"]
	assert.False(t, hasStatus, "status is only present for HTTP errors")
}

func TestErrorReport_SkippedRequestHasNoStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := NewErrorReport("price-api", NewSkippedError("A", "daily quota exhausted"), 0, at)

	assert.Equal(t, "HTTP_ERROR", report.ErrorCode)
	assert.Equal(t, 0, report.Context.Status)
	assert.NotContains(t, report.Details, "status")

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"status"`)
}

func TestErrorReport_UnmarshalRejectsBadTimestamp(t *testing.T) {
	var r ErrorReport
	err := json.Unmarshal([]byte(`{"service":"x","timestamp":"yesterday"}`), &r)
	assert.Error(t, err)
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := assert.AnError
	fe := NewNetworkError("A", "connection refused", cause)

	var wrapped error = fe
	got, ok := AsFetchError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, got.Kind)
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindFromCode(t *testing.T) {
	for _, k := range []ErrorKind{KindNetwork, KindTimeout, KindHTTP, KindValidation} {
		got, ok := KindFromCode(k.Code())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := KindFromCode("E-12045")
	assert.False(t, ok)
}
