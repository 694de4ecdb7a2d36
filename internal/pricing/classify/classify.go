// Package classify decides whether an error report applies to this deployment.
//
// Classification is an ordered decision table; the first matching rule wins:
//
//  1. the report's service depends on a capability the deployment does not declare
//  2. the report maps to a database connection failure and there is no database
//  3. anything else is a valid error
//
// Unknown services and codes always fall through to rule 3.
package classify

import (
	"fmt"
	"strings"

	"github.com/vietddude/pricewatch/internal/core/domain"
)

// ErrorType is the normalized meaning of a report's errorCode.
type ErrorType string

const (
	TypeNetwork            ErrorType = "network"
	TypeTimeout            ErrorType = "timeout"
	TypeHTTP               ErrorType = "http"
	TypeValidation         ErrorType = "validation"
	TypeDatabaseConnection ErrorType = "database-connection"
	TypePaymentGateway     ErrorType = "payment-gateway"
	TypeUnknown            ErrorType = "unknown"
)

// codeTypes maps exact error codes to a type.
var codeTypes = map[string]ErrorType{
	"E-12045":             TypePaymentGateway,
	"ECONNREFUSED":        TypeNetwork,
	"ETIMEDOUT":           TypeTimeout,
	"DB_CONNECTION_ERROR": TypeDatabaseConnection,
	"DB_CONNECTION_LOST":  TypeDatabaseConnection,
	"DATABASE_CONNECTION": TypeDatabaseConnection,
}

// prefixTypes maps code prefixes to a type.
var prefixTypes = []struct {
	prefix string
	typ    ErrorType
}{
	{"DB_", TypeDatabaseConnection},
	{"PAYMENT_", TypePaymentGateway},
}

// MapErrorType derives the ErrorType of a report from its errorCode, service and details.
func MapErrorType(r domain.ErrorReport) ErrorType {
	code := strings.ToUpper(strings.TrimSpace(r.ErrorCode))

	if kind, ok := domain.KindFromCode(code); ok {
		return fromKind(r, kind)
	}
	if t, ok := codeTypes[code]; ok {
		if (t == TypeNetwork || t == TypeTimeout) && dependsOnDatabase(r.Service) {
			return TypeDatabaseConnection
		}
		return t
	}
	for _, p := range prefixTypes {
		if strings.HasPrefix(code, p.prefix) {
			return p.typ
		}
	}
	if mentionsDatabaseConnection(r.Details) {
		return TypeDatabaseConnection
	}
	return TypeUnknown
}

func fromKind(r domain.ErrorReport, kind domain.ErrorKind) ErrorType {
	switch kind {
	case domain.KindNetwork:
		if dependsOnDatabase(r.Service) {
			return TypeDatabaseConnection
		}
		return TypeNetwork
	case domain.KindTimeout:
		if dependsOnDatabase(r.Service) {
			return TypeDatabaseConnection
		}
		return TypeTimeout
	case domain.KindHTTP:
		return TypeHTTP
	case domain.KindValidation:
		return TypeValidation
	}
	return TypeUnknown
}

func dependsOnDatabase(service string) bool {
	c, ok := domain.CapabilityForService(service)
	return ok && c == domain.CapabilityDatabase
}

func mentionsDatabaseConnection(details string) bool {
	d := strings.ToLower(details)
	return strings.Contains(d, "database connection") || strings.Contains(d, "connection to database")
}

// Classify evaluates the decision table. It is pure and never fails.
func Classify(r domain.ErrorReport, caps domain.ServiceCapabilityDescriptor) domain.ClassificationResult {
	if c, ok := domain.CapabilityForService(r.Service); ok && !caps.Has(c) {
		return falsePositive(fmt.Sprintf("service %q requires capability %q which this %s deployment does not declare",
			r.Service, c, deploymentType(caps)))
	}

	if MapErrorType(r) == TypeDatabaseConnection && !caps.HasDatabase {
		return falsePositive(fmt.Sprintf("database connection error but this %s deployment has no database",
			deploymentType(caps)))
	}

	return domain.ClassificationResult{
		IsValidError: true,
		Category:     domain.CategoryValidError,
		Reason:       "error applies to declared capabilities",
	}
}

// Classifier binds Classify to a fixed capability descriptor.
type Classifier struct {
	caps domain.ServiceCapabilityDescriptor
}

// New creates a Classifier for caps.
func New(caps domain.ServiceCapabilityDescriptor) *Classifier {
	return &Classifier{caps: caps}
}

// Classify classifies r against the bound capabilities.
func (c *Classifier) Classify(r domain.ErrorReport) domain.ClassificationResult {
	return Classify(r, c.caps)
}

// Capabilities returns the bound descriptor.
func (c *Classifier) Capabilities() domain.ServiceCapabilityDescriptor {
	return c.caps
}

func falsePositive(reason string) domain.ClassificationResult {
	return domain.ClassificationResult{
		IsValidError: false,
		Category:     domain.CategoryFalsePositive,
		Reason:       reason,
	}
}

func deploymentType(caps domain.ServiceCapabilityDescriptor) string {
	if caps.Type == "" {
		return "unnamed"
	}
	return caps.Type
}
