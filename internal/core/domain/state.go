package domain

import "time"

// OracleStatus is the position of a feed in its fetch state machine.
type OracleStatus string

const (
	StatusIdle    OracleStatus = "idle"
	StatusLoading OracleStatus = "loading"
	StatusSuccess OracleStatus = "success"
	StatusError   OracleStatus = "error"
)

// OracleState is the externally visible value of a price feed.
// Price and Source are set if and only if Status is StatusSuccess.
type OracleState struct {
	Status      OracleStatus `json:"status"`
	Price       *float64     `json:"price"`
	Source      *string      `json:"source"`
	LastUpdated *time.Time   `json:"lastUpdated"`
	LastError   *ErrorReport `json:"lastError,omitempty"`
}

// IdleState is the initial state of every feed.
func IdleState() OracleState {
	return OracleState{Status: StatusIdle}
}

// Clone returns a deep copy so callers never share pointers with the live state.
func (s OracleState) Clone() OracleState {
	out := OracleState{Status: s.Status}
	if s.Price != nil {
		p := *s.Price
		out.Price = &p
	}
	if s.Source != nil {
		src := *s.Source
		out.Source = &src
	}
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	if s.LastError != nil {
		r := *s.LastError
		out.LastError = &r
	}
	return out
}

// Loading derives the in-flight state from s. The previous price is dropped.
func (s OracleState) Loading() OracleState {
	next := s.Clone()
	next.Status = StatusLoading
	next.Price = nil
	next.Source = nil
	return next
}

// Succeeded derives the committed success state.
func (s OracleState) Succeeded(price float64, source string, at time.Time) OracleState {
	return OracleState{
		Status:      StatusSuccess,
		Price:       &price,
		Source:      &source,
		LastUpdated: &at,
	}
}

// Failed derives the committed error state.
func (s OracleState) Failed(report ErrorReport, at time.Time) OracleState {
	return OracleState{
		Status:      StatusError,
		LastUpdated: &at,
		LastError:   &report,
	}
}

// Consistent reports whether the price/status invariant holds.
func (s OracleState) Consistent() bool {
	if s.Status == StatusSuccess {
		return s.Price != nil && s.Source != nil
	}
	return s.Price == nil && s.Source == nil
}
