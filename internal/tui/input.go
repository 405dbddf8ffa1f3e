package tui

// InputField is a single-line text input. Active is true while it has
// keyboard focus.
type InputField struct {
	Input  string
	Active bool
}

// HandleRune appends a character to the input.
func (field *InputField) HandleRune(r rune) {
	field.Input += string(r)
}

// HandleBackspace removes the last character. Returns false when the
// input was already empty.
func (field *InputField) HandleBackspace() bool {
	if field.Input == "" {
		return false
	}
	runes := []rune(field.Input)
	field.Input = string(runes[:len(runes)-1])
	return true
}

// Clear empties the input and drops focus.
func (field *InputField) Clear() {
	field.Input = ""
	field.Active = false
}
