package domain

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/nyaruka/phonenumbers"
)

// e164Pattern is a cheap structural pre-filter: '+' followed by 7-15 digits.
// Authoritative parsing (region, national significant number) is delegated
// to phonenumbers below.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// PhoneNumber is a value object representing a phone number in E.164 format.
// Always valid in memory — use NewPhoneNumber to construct.
type PhoneNumber struct {
	value string
}

// NewPhoneNumber creates a PhoneNumber from a raw string, validating E.164
// shape with the regex pre-filter and then confirming libphonenumber
// considers the result a possible number.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	if raw == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty: %w", ErrInvalidPhoneNumber)
	}
	if !e164Pattern.MatchString(raw) {
		return PhoneNumber{}, fmt.Errorf("phone number %q is not valid E.164: %w", raw, ErrInvalidPhoneNumber)
	}
	parsed, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsPossibleNumber(parsed) {
		return PhoneNumber{}, fmt.Errorf("phone number %q failed libphonenumber validation: %w", raw, ErrInvalidPhoneNumber)
	}
	return PhoneNumber{value: raw}, nil
}

// MustPhoneNumber creates a PhoneNumber, panicking on invalid input. Use only in tests.
func MustPhoneNumber(raw string) PhoneNumber {
	p, err := NewPhoneNumber(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// PhoneNumberFromUint64 reconstructs a PhoneNumber from the wire's compact
// numeric form: the E.164 digits without the leading '+'.
func PhoneNumberFromUint64(digits uint64) (PhoneNumber, error) {
	return NewPhoneNumber("+" + strconv.FormatUint(digits, 10))
}

// Uint64 returns the wire representation of the phone number: the E.164
// digit string (no leading '+') parsed as an unsigned integer.
func (p PhoneNumber) Uint64() uint64 {
	v, _ := strconv.ParseUint(p.value[1:], 10, 64)
	return v
}

// CountryCode returns the number's calling code (e.g. 1, 44, 33),
// used by the selection strategy's routing table.
func (p PhoneNumber) CountryCode() int32 {
	parsed, err := phonenumbers.Parse(p.value, "")
	if err != nil {
		return 0
	}
	return parsed.GetCountryCode()
}

func (p PhoneNumber) String() string { return p.value }
func (p PhoneNumber) IsZero() bool   { return p.value == "" }
