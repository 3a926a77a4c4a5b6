// Package order generates fractional sort keys: strings that compare
// lexicographically and always leave room for another key between any two
// neighbors, so inserting never renumbers siblings.
package order

import "strings"

// Keys are base-62 fraction strings. The digit set is in ASCII order, so
// byte-wise string comparison matches numeric comparison of the fractions.
const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Between returns a key that sorts strictly between before and after.
// The empty string stands for the open end of the partition on either side.
// before must sort strictly before after; passing a misordered pair is a
// caller bug, not a recoverable condition.
func Between(before, after string) string {
	if before != "" && after != "" && before >= after {
		panic("order: misordered key pair: " + before + " >= " + after)
	}
	return midpoint(before, after)
}

// After returns a key sorting after key ("" means after nothing, i.e. any key).
func After(key string) string {
	return Between(key, "")
}

// Before returns a key sorting before key.
func Before(key string) string {
	return Between("", key)
}

// ForIndex computes the key for inserting at index into an already-sorted
// key list. Indices at or past either end clamp to Before/After.
func ForIndex(sorted []string, index int) string {
	switch {
	case len(sorted) == 0:
		return Between("", "")
	case index <= 0:
		return Before(sorted[0])
	case index >= len(sorted):
		return After(sorted[len(sorted)-1])
	default:
		return Between(sorted[index-1], sorted[index])
	}
}

// midpoint returns the shortest-ish fraction string strictly between a and b,
// where "" means zero on the left and one on the right. Generated keys never
// end in the zero digit, which keeps an After/Between result reachable for
// every key midpoint hands out.
func midpoint(a, b string) string {
	if b != "" {
		// Shared prefix (treating a as zero-padded) stays verbatim.
		i := 0
		for i < len(b) {
			ca := digits[0]
			if i < len(a) {
				ca = a[i]
			}
			if ca != b[i] {
				break
			}
			i++
		}
		if i > 0 {
			var restA string
			if i < len(a) {
				restA = a[i:]
			}
			return b[:i] + midpoint(restA, b[i:])
		}
	}

	da := 0
	if a != "" {
		da = digitIndex(a[0])
	}
	db := len(digits)
	if b != "" {
		db = digitIndex(b[0])
	}

	if db-da > 1 {
		return string(digits[(da+db)/2])
	}

	// Consecutive leading digits: either borrow b's head, or extend a.
	if len(b) > 1 {
		return b[:1]
	}
	var restA string
	if a != "" {
		restA = a[1:]
	}
	return string(digits[da]) + midpoint(restA, "")
}

func digitIndex(c byte) int {
	i := strings.IndexByte(digits, c)
	if i < 0 {
		panic("order: key contains byte outside the digit set")
	}
	return i
}
