package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.1.0", "v0.1.0"},
		{"v0.1.0", "v0.1.0"},
		{"dev", "dev"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in))
	}
}

func TestSetVersionInfo(t *testing.T) {
	origV, origC, origD := version, commit, date
	defer SetVersionInfo(origV, origC, origD)

	SetVersionInfo("1.2.3", "abc1234", "2026-08-01")
	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "abc1234", commit)
	assert.Equal(t, "2026-08-01", date)
}
