package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrorContext locates a failure within the fallback chain.
type ErrorContext struct {
	Endpoint string `json:"endpoint"`
	Reason   string `json:"reason"`
	Status   int    `json:"status,omitempty"`
}

// ErrorReport is the uniform failure record produced for every failed attempt.
// It is immutable once created.
type ErrorReport struct {
	Service             string       `json:"service"`
	Timestamp           time.Time    `json:"timestamp"`
	ErrorCode           string       `json:"errorCode"`
	Details             string       `json:"details"`
	Context             ErrorContext `json:"context"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
}

// NewErrorReport normalizes a FetchError into an ErrorReport.
func NewErrorReport(service string, fe *FetchError, failures int, at time.Time) ErrorReport {
	return ErrorReport{
		Service:   service,
		Timestamp: at.UTC(),
		ErrorCode: fe.Kind.Code(),
		Details:   fe.Error(),
		Context: ErrorContext{
			Endpoint: fe.Endpoint,
			Reason:   fe.Reason,
			Status:   fe.StatusCode,
		},
		ConsecutiveFailures: failures,
	}
}

// WithFailures returns a copy of the report carrying a new streak value.
func (r ErrorReport) WithFailures(n int) ErrorReport {
	r.ConsecutiveFailures = n
	return r
}

// MarshalJSON pins the timestamp to RFC 3339 with nanoseconds so round trips are lossless.
func (r ErrorReport) MarshalJSON() ([]byte, error) {
	type alias ErrorReport
	return json.Marshal(struct {
		alias
		Timestamp string `json:"timestamp"`
	}{
		alias:     alias(r),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func (r *ErrorReport) UnmarshalJSON(data []byte) error {
	type alias ErrorReport
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		r.Timestamp = time.Time{}
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid report timestamp: %w", err)
	}
	r.Timestamp = ts.UTC()
	return nil
}
