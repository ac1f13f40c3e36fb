package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeString(t *testing.T) {
	tests := []struct {
		input   string
		enable  string
		disable string
		ok      bool
	}{
		{"+i", "i", "", true},
		{"-i", "", "i", true},
		{"+it-k", "it", "k", true},
		{"-it+k", "k", "it", true},
		{"+itk-ol", "itk", "ol", true},
		{"i", "", "", false},
		{"+", "", "", false},
		{"+i-", "", "", false},
		{"++i", "", "", false},
		{"+i+", "", "", false},
		{"", "", "", false},
		{"+i2t", "", "", false},
	}

	for _, tt := range tests {
		enable, disable, ok := parseModeString(tt.input)
		require.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.enable, enable, "input %q", tt.input)
		assert.Equal(t, tt.disable, disable, "input %q", tt.input)
	}
}

func TestValidModeRun(t *testing.T) {
	assert.True(t, validModeRun(""))
	assert.True(t, validModeRun("itkol"))
	assert.True(t, validModeRun("ik"))

	assert.False(t, validModeRun("ii"), "duplicate letter")
	assert.False(t, validModeRun("x"), "unsupported letter")
	assert.False(t, validModeRun("ixt"), "unsupported letter mid-run")
}
