package services

import (
	"github.com/carenest/therapy-booking/pkg/validator"
)

// RegionAddressMatcher matches addresses to service areas by region tokens
type RegionAddressMatcher struct {
	validator *validator.AddressValidator
}

// NewRegionAddressMatcher creates a new RegionAddressMatcher
func NewRegionAddressMatcher() *RegionAddressMatcher {
	return &RegionAddressMatcher{validator: validator.NewAddressValidator()}
}

// Matches reports whether address is valid and lies in any of the areas
func (m *RegionAddressMatcher) Matches(address string, serviceAreas []string) bool {
	if m.validator.Validate(address) != nil {
		return false
	}
	for _, area := range serviceAreas {
		if m.validator.WithinArea(address, area) {
			return true
		}
	}
	return false
}
