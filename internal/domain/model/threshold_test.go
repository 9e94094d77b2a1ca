package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplabs/loopgate/internal/domain/model"
)

func TestParseThreshold_Valid(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"0", 0},
		{"1", 1},
		{"3", 3},
		{"42", 42},
		{"100", 100},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := model.ParseThreshold(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseThreshold_Invalid(t *testing.T) {
	tests := []string{
		"",
		"-1",
		"+3",
		"3.5",
		" 3",
		"3 ",
		"abc",
		"0x10",
		"1e3",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := model.ParseThreshold(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidThreshold)
		})
	}
}

func TestRule_DecodedThreshold(t *testing.T) {
	rule := model.Rule{CriteriaType: model.CriteriaPRCount, Threshold: "5"}

	n, err := rule.DecodedThreshold()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rule.Threshold = "five"
	_, err = rule.DecodedThreshold()
	assert.ErrorIs(t, err, model.ErrInvalidThreshold)
}
