package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone returns the E.164 form of phone when it parses as a valid
// number, otherwise the trimmed input. Numbers without a leading "+" are tried
// as international first, then against defaultRegion.
func NormalizePhone(phone, defaultRegion string) string {
	clean := strings.TrimSpace(phone)
	if clean == "" {
		return ""
	}

	candidates := []struct{ number, region string }{
		{clean, defaultRegion},
	}
	if !strings.HasPrefix(clean, "+") {
		candidates = []struct{ number, region string }{
			{"+" + clean, ""},
			{clean, defaultRegion},
		}
	}

	for _, c := range candidates {
		if c.region == "" && !strings.HasPrefix(c.number, "+") {
			continue
		}
		num, err := phonenumbers.Parse(c.number, c.region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			continue
		}
		return phonenumbers.Format(num, phonenumbers.E164)
	}

	return clean
}
