package domain

import "strings"

// Capability is a backend feature a deployment may or may not have.
type Capability string

const (
	CapabilityBackend        Capability = "backend"
	CapabilityDatabase       Capability = "database"
	CapabilityPaymentGateway Capability = "payment-gateway"
)

// ServiceCapabilityDescriptor declares which features a deployment actually has.
// It is loaded once at startup and never mutated.
type ServiceCapabilityDescriptor struct {
	Type              string `json:"type"              yaml:"type"`
	HasBackend        bool   `json:"hasBackend"        yaml:"has_backend"`
	HasDatabase       bool   `json:"hasDatabase"       yaml:"has_database"`
	HasPaymentGateway bool   `json:"hasPaymentGateway" yaml:"has_payment_gateway"`
}

// Has reports whether the deployment declares c.
func (d ServiceCapabilityDescriptor) Has(c Capability) bool {
	switch c {
	case CapabilityBackend:
		return d.HasBackend
	case CapabilityDatabase:
		return d.HasDatabase
	case CapabilityPaymentGateway:
		return d.HasPaymentGateway
	default:
		return false
	}
}

// serviceCapabilities maps service names seen in reports to the capability they depend on.
var serviceCapabilities = map[string]Capability{
	"backend":         CapabilityBackend,
	"api":             CapabilityBackend,
	"api-server":      CapabilityBackend,
	"database":        CapabilityDatabase,
	"db":              CapabilityDatabase,
	"postgres":        CapabilityDatabase,
	"postgresql":      CapabilityDatabase,
	"payment-gateway": CapabilityPaymentGateway,
	"payment":         CapabilityPaymentGateway,
	"payments":        CapabilityPaymentGateway,
}

// CapabilityForService returns the capability a service name depends on, if any.
func CapabilityForService(service string) (Capability, bool) {
	c, ok := serviceCapabilities[strings.ToLower(strings.TrimSpace(service))]
	return c, ok
}
