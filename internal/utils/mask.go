package utils

import "strings"

// MaskPhone hides all but the last four digits of a phone number, e.g.
// "9876543210" becomes "******3210". Numbers of four digits or fewer are
// masked entirely.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
