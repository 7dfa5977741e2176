package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare", `{"triples":[]}`, `{"triples":[]}`},
		{"fenced", "Here you go:\n```json\n{\"triples\":[]}\n```", `{"triples":[]}`},
		{"surrounding prose", `Sure. {"a":{"b":1}} Hope that helps.`, `{"a":{"b":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	_, err := ExtractJSONObject("no json here")
	assert.Error(t, err)

	_, err = ExtractJSONObject("} backwards {")
	assert.Error(t, err)
}
