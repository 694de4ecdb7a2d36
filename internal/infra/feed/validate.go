package feed

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/vietddude/pricewatch/internal/core/domain"
)

// Validate extracts a price from raw using desc.Parse and checks that it is usable.
// Failures are *domain.FetchError of kind KindValidation.
func Validate(raw []byte, desc domain.EndpointDescriptor) (float64, error) {
	if len(bytes.TrimSpace(raw)) == 0 || !gjson.ValidBytes(raw) {
		return 0, domain.NewValidationError(desc.Name, "Malformed JSON response")
	}
	if desc.Parse == nil {
		return 0, domain.NewValidationError(desc.Name, "No parser configured")
	}

	price, ok := desc.Parse(raw)
	if !ok {
		return 0, domain.NewValidationError(desc.Name, structureReason(desc.Asset))
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, domain.NewValidationError(desc.Name, "Price is not a finite number")
	}
	if price < 0 {
		return 0, domain.NewValidationError(desc.Name, "Price is negative")
	}
	return price, nil
}

func structureReason(asset string) string {
	if asset == "" {
		return "Invalid price structure"
	}
	return fmt.Sprintf("Invalid %s price structure", asset)
}
