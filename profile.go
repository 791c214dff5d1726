package auth

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for phone numbers without a country prefix.
const DefaultPhoneRegion = "US"

// NormalizeProfile trims every field and converts the phone number to E.164.
func NormalizeProfile(p Profile, region string) (Profile, error) {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Email = strings.TrimSpace(p.Email)
	p.ShopName = strings.TrimSpace(p.ShopName)
	p.Phone = strings.TrimSpace(p.Phone)

	if p.Phone == "" {
		return p, nil
	}

	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(p.Phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return p, newError(ErrInvalidInput, "invalid phone number", map[string]any{
			"phone_number": p.Phone,
		})
	}

	p.Phone = phonenumbers.Format(num, phonenumbers.E164)
	return p, nil
}
