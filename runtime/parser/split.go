package parser

// SplitCommands splits text on top-level commas only. Commas inside any
// (...) nesting, tracked by a signed depth counter, stay part of the
// enclosing segment. No balance validation is performed: if parentheses
// never close, the trailing content is still emitted as a final segment
// when non-empty. Interior empty segments ("a,,b") are preserved.
func SplitCommands(text string) []string {
	var segments []string
	var current []byte
	depth := 0

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if c == ',' && depth == 0 {
			segments = append(segments, string(current))
			current = current[:0]
			continue
		}
		current = append(current, c)
	}
	if len(current) > 0 {
		segments = append(segments, string(current))
	}
	return segments
}
