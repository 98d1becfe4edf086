package pattern

// luhnValid reports whether the candidate, ignoring separators, is a
// 13-19 digit group passing the Luhn checksum. Digit runs failing the
// checksum are arbitrary numbers, not card numbers.
func luhnValid(candidate string) bool {
	var digits []int
	for _, r := range candidate {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == '-' || r == '.' || r == ' ':
			// separator, skip
		default:
			return false
		}
	}

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
