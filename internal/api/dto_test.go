package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountStatusRequest_SkipSuggestionForms(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bool with item", `{"skip_suggestion": true, "item_to_skip": 1}`, 1},
		{"bool false ignores item", `{"skip_suggestion": false, "item_to_skip": 1}`, 0},
		{"int item id", `{"skip_suggestion": 42}`, 42},
		{"int zero", `{"skip_suggestion": 0}`, 0},
		{"item_to_skip wins over int", `{"skip_suggestion": 42, "item_to_skip": 7}`, 7},
		{"null", `{"skip_suggestion": null, "item_to_skip": 1}`, 0},
		{"missing", `{"item_to_skip": 1}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req accountStatusRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.want, req.update().SkipItem)
		})
	}
}

func TestAccountStatusRequest_RejectsMalformedSkip(t *testing.T) {
	var req accountStatusRequest
	err := json.Unmarshal([]byte(`{"skip_suggestion": "yes"}`), &req)
	assert.Error(t, err)
}
