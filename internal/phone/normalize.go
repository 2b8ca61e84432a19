// Package phone normalizes and validates lead phone numbers before they are
// handed to the dialer.
package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrInvalidPhone       = errors.New("phone: invalid number")
	ErrUnsupportedCountry = errors.New("phone: unsupported country code")
)

// nationalMobile holds the national mobile pattern per country calling code.
// Patterns match the national significant number (no trunk prefix).
var nationalMobile = map[string]*regexp.Regexp{
	"91": regexp.MustCompile(`^[6-9]\d{9}$`),
	"1":  regexp.MustCompile(`^[2-9]\d{2}[2-9]\d{6}$`),
	"44": regexp.MustCompile(`^7\d{9}$`),
	"61": regexp.MustCompile(`^4\d{8}$`),
}

var stripper = strings.NewReplacer(" ", "", "\t", "", "(", "", ")", "", "-", "", ".", "")

// Result is the outcome of a successful normalization.
type Result struct {
	// Canonical is the E.164 form, e.g. +919876543210.
	Canonical string
	// National is the national significant number, e.g. 9876543210.
	National string
	// Changed reports whether Canonical differs from the raw input.
	Changed bool
}

// Validator normalizes numbers for one default country.
type Validator struct {
	cc      string
	pattern *regexp.Regexp
}

func NewValidator(countryCode string) (*Validator, error) {
	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	p, ok := nationalMobile[cc]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCountry, countryCode)
	}
	return &Validator{cc: cc, pattern: p}, nil
}

// CountryCode returns the default calling code, digits only.
func (v *Validator) CountryCode() string { return v.cc }

// Normalize cleans punctuation, applies the country-code heuristics and
// validates against the national mobile pattern. It has no side effects and
// is idempotent: normalizing a canonical number returns it unchanged.
func (v *Validator) Normalize(raw string) (Result, error) {
	s := stripper.Replace(strings.TrimSpace(raw))
	if s == "" {
		return Result{}, fmt.Errorf("%w: empty", ErrInvalidPhone)
	}

	hasPlus := strings.HasPrefix(s, "+")
	digits := strings.TrimPrefix(s, "+")
	if !allDigits(digits) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}

	if !hasPlus {
		switch {
		case len(digits) == 11 && digits[0] == '0':
			// trunk prefix
			digits = v.cc + digits[1:]
		case len(digits) == 10:
			digits = v.cc + digits
		case len(digits) == len(v.cc)+10 && strings.HasPrefix(digits, v.cc):
		default:
			return Result{}, fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
	}

	num, err := phonenumbers.Parse("+"+digits, "")
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if strconv.Itoa(int(num.GetCountryCode())) != v.cc {
		return Result{}, fmt.Errorf("%w: country code %d", ErrInvalidPhone, num.GetCountryCode())
	}
	national := phonenumbers.GetNationalSignificantNumber(num)
	if !v.pattern.MatchString(national) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}

	canonical := phonenumbers.Format(num, phonenumbers.E164)
	return Result{Canonical: canonical, National: national, Changed: canonical != raw}, nil
}

// Normalize is a convenience wrapper for one-off calls.
func Normalize(raw, countryCode string) (Result, error) {
	v, err := NewValidator(countryCode)
	if err != nil {
		return Result{}, err
	}
	return v.Normalize(raw)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
