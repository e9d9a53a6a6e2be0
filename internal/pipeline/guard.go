package pipeline

// Guard returns original instead of encoded when the conversion made the
// image larger. The bool reports whether original was substituted. Only
// lengths are compared; equal sizes keep the encoded bytes.
func Guard(encoded, original []byte) ([]byte, bool) {
	if len(encoded) > len(original) {
		return original, true
	}
	return encoded, false
}
