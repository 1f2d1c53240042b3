package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ProgressValue accepts either a JSON number or a numeric string. Values that
// do not parse are kept so validation can report them.
type ProgressValue struct {
	Raw    string
	Value  float64
	Parsed bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProgressValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	p.Raw = string(data)
	p.Parsed = false
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var text string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return nil
		}
		p.Raw = text
	} else {
		text = string(data)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil
	}
	p.Value = value
	p.Parsed = true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p ProgressValue) MarshalJSON() ([]byte, error) {
	if !p.Parsed {
		return json.Marshal(p.Raw)
	}
	return json.Marshal(p.Value)
}

// NewProgress builds a parsed ProgressValue.
func NewProgress(v float64) *ProgressValue {
	return &ProgressValue{Raw: strconv.FormatFloat(v, 'f', -1, 64), Value: v, Parsed: true}
}

// UpdateProgressRequest updates a student's membership in the caller's teams.
type UpdateProgressRequest struct {
	StudentID   string         `json:"studentId" validate:"required"`
	Progress    *ProgressValue `json:"progress,omitempty"`
	ProjectName *string        `json:"projectName,omitempty" validate:"omitempty,max=200"`
	LORUnlocked *bool          `json:"lorUnlocked,omitempty"`
	TeamID      string         `json:"teamId,omitempty"`
}

// UpdateProgressResponse reports how many memberships were touched.
type UpdateProgressResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Updated int    `json:"updated"`
}
