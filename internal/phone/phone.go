package phone

import "strings"

// Normalize strips formatting so that the same number always maps to the
// same guest. Local Israeli mobile numbers (05XXXXXXXX) are converted to
// international form.
func Normalize(phoneNumber string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phoneNumber = b.String()

	// 05XXXXXXXX -> 9725XXXXXXXX
	if strings.HasPrefix(phoneNumber, "0") && len(phoneNumber) == 10 {
		phoneNumber = "972" + phoneNumber[1:]
	}
	if strings.HasPrefix(phoneNumber, "9720") {
		phoneNumber = "972" + phoneNumber[4:]
	}
	return phoneNumber
}
