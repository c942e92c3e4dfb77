package core

// itoa64 converts an integer to a string without using fmt package
func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)

	negative := n < 0
	u := uint64(n)
	if negative {
		u = uint64(-n)
	}

	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	return itoa64(int64(n))
}

// printableByte renders b for debug output
func printableByte(b byte) string {
	if b >= 0x20 && b < 0x7f {
		return "'" + string(rune(b)) + "'"
	}
	return "0x" + string("0123456789abcdef"[b>>4]) + string("0123456789abcdef"[b&0x0f])
}
