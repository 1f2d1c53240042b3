package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressValueUnmarshal(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		parsed bool
		value  float64
	}{
		{name: "number", body: `{"studentId":"s","progress":55}`, parsed: true, value: 55},
		{name: "numeric string", body: `{"studentId":"s","progress":" 70 "}`, parsed: true, value: 70},
		{name: "fraction", body: `{"studentId":"s","progress":12.5}`, parsed: true, value: 12.5},
		{name: "text", body: `{"studentId":"s","progress":"abc"}`, parsed: false},
		{name: "bool", body: `{"studentId":"s","progress":true}`, parsed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req UpdateProgressRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			require.NotNil(t, req.Progress)
			assert.Equal(t, tc.parsed, req.Progress.Parsed)
			if tc.parsed {
				assert.Equal(t, tc.value, req.Progress.Value)
			}
		})
	}
}

func TestProgressValueOmitted(t *testing.T) {
	var req UpdateProgressRequest
	require.NoError(t, json.Unmarshal([]byte(`{"studentId":"s","lorUnlocked":true}`), &req))
	assert.Nil(t, req.Progress)
	require.NotNil(t, req.LORUnlocked)
	assert.True(t, *req.LORUnlocked)
}
