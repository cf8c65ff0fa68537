package recipient

import "strings"

// MaskName hides the inner characters of every whitespace-separated name segment.
//
// Per segment: length <= 1 is returned as-is, length 2 keeps the first character
// and appends "*", length 3 appends "**", and longer segments replace only the
// characters at positions 1 and 2 with "**" and keep the tail from position 3.
// The mask width is fixed at two characters regardless of segment length.
func MaskName(name string) string {
	segments := strings.Fields(name)
	for i, segment := range segments {
		segments[i] = maskSegment(segment)
	}
	return strings.Join(segments, " ")
}

func maskSegment(segment string) string {
	runes := []rune(segment)
	switch {
	case len(runes) <= 1:
		return segment
	case len(runes) == 2:
		return string(runes[0]) + "*"
	case len(runes) == 3:
		return string(runes[0]) + "**"
	default:
		return string(runes[0]) + "**" + string(runes[3:])
	}
}
