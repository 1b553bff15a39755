package validator

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrEmptyAddress indicates the address is blank
	ErrEmptyAddress = errors.New("address cannot be empty")

	// ErrAddressTooShort indicates the address lacks a region and a district
	ErrAddressTooShort = errors.New("address must contain at least a region and a district")
)

// regionAliases maps official province and metropolitan names to the short form
// people usually type
var regionAliases = map[string]string{
	"서울특별시":   "서울",
	"서울시":     "서울",
	"부산광역시":   "부산",
	"대구광역시":   "대구",
	"인천광역시":   "인천",
	"광주광역시":   "광주",
	"대전광역시":   "대전",
	"울산광역시":   "울산",
	"세종특별자치시": "세종",
	"경기도":     "경기",
	"강원도":     "강원",
	"강원특별자치도": "강원",
	"충청북도":    "충북",
	"충청남도":    "충남",
	"전라북도":    "전북",
	"전북특별자치도": "전북",
	"전라남도":    "전남",
	"경상북도":    "경북",
	"경상남도":    "경남",
	"제주도":     "제주",
	"제주특별자치도": "제주",
}

// AddressValidator normalises postal addresses for service-area comparison
type AddressValidator struct{}

// NewAddressValidator creates a new address validator instance
func NewAddressValidator() *AddressValidator {
	return &AddressValidator{}
}

// Validate checks that the address names at least a region and a district
func (v *AddressValidator) Validate(address string) error {
	tokens := v.Tokens(address)
	if len(tokens) == 0 {
		return ErrEmptyAddress
	}
	if len(tokens) < 2 {
		return ErrAddressTooShort
	}
	return nil
}

// Tokens splits a normalised address into its components
func (v *AddressValidator) Tokens(address string) []string {
	return strings.Fields(v.Normalize(address))
}

// Normalize lowercases, drops punctuation, collapses whitespace and shortens region names
// Examples:
//   - "서울특별시  강남구, 역삼동" -> "서울 강남구 역삼동"
//   - "Seoul-si Gangnam-gu" -> "seoul-si gangnam-gu"
func (v *AddressValidator) Normalize(address string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return unicode.ToLower(r)
		case unicode.IsSpace(r), unicode.IsPunct(r):
			return ' '
		}
		return -1
	}, address)

	fields := strings.Fields(cleaned)
	for i, f := range fields {
		if short, ok := regionAliases[f]; ok {
			fields[i] = short
		}
	}
	return strings.Join(fields, " ")
}

// WithinArea reports whether address lies in area, i.e. the area's components are a
// prefix of the address's components
func (v *AddressValidator) WithinArea(address, area string) bool {
	areaTokens := v.Tokens(area)
	addrTokens := v.Tokens(address)
	if len(areaTokens) == 0 || len(areaTokens) > len(addrTokens) {
		return false
	}
	for i, t := range areaTokens {
		if addrTokens[i] != t {
			return false
		}
	}
	return true
}
