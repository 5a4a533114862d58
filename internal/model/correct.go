package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CorrectOption is the correct-option indicator of an objective question.
// Question banks store it either as an option index or as the option text.
type CorrectOption struct {
	Index *int
	Value string
}

// IndexOption returns a CorrectOption holding an option index.
func IndexOption(i int) CorrectOption {
	return CorrectOption{Index: &i}
}

// ValueOption returns a CorrectOption holding the option text.
func ValueOption(s string) CorrectOption {
	return CorrectOption{Value: s}
}

// IsSet reports whether any indicator is present.
func (c CorrectOption) IsSet() bool {
	return c.Index != nil || c.Value != ""
}

// MarshalJSON encodes the indicator as a JSON number, string or null.
func (c CorrectOption) MarshalJSON() ([]byte, error) {
	switch {
	case c.Index != nil:
		return []byte(strconv.Itoa(*c.Index)), nil
	case c.Value != "":
		return json.Marshal(c.Value)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON number, string or null.
func (c *CorrectOption) UnmarshalJSON(data []byte) error {
	*c = CorrectOption{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &c.Value)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("correct_option: %w", err)
	}
	if f != float64(int(f)) {
		return fmt.Errorf("correct_option: %v is not an option index", f)
	}
	i := int(f)
	c.Index = &i
	return nil
}
