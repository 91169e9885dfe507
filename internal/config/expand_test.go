package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandRemote(t *testing.T) {
	t.Setenv("USER", "wfuser")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "HOME expands to tilde",
			input:    "${HOME}/wf/project",
			expected: "~/wf/project",
		},
		{
			name:     "PROJECT expands",
			input:    "~/wf/${PROJECT}",
			expected: "~/wf/" + getProject(), // Uses current project
		},
		{
			name:     "USER expands",
			input:    "/home/${USER}/wf",
			expected: "/home/wfuser/wf",
		},
		{
			name:     "tilde unchanged",
			input:    "~/projects/app",
			expected: "~/projects/app",
		},
		{
			name:     "absolute path unchanged",
			input:    "/opt/app/data",
			expected: "/opt/app/data",
		},
		{
			name:     "multiple variables",
			input:    "${HOME}/wf/${PROJECT}",
			expected: "~/wf/" + getProject(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandRemote(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExpand_vs_ExpandRemote(t *testing.T) {
	// Expand should use local HOME
	localHome, _ := os.UserHomeDir()
	expandResult := Expand("${HOME}/test")
	assert.Equal(t, localHome+"/test", expandResult)

	// ExpandRemote should use ~ for remote shell expansion
	expandRemoteResult := ExpandRemote("${HOME}/test")
	assert.Equal(t, "~/test", expandRemoteResult)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "bare tilde", input: "~", expected: home},
		{name: "tilde path", input: "~/store", expected: home + "/store"},
		{name: "absolute path unchanged", input: "/opt/wf", expected: "/opt/wf"},
		{name: "mid-string tilde unchanged", input: "/opt/~/wf", expected: "/opt/~/wf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandTilde(tt.input))
		})
	}
}

func TestExtractRepoName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "ssh url", url: "git@github.com:team/widgets.git", expected: "widgets"},
		{name: "https url", url: "https://github.com/team/widgets.git", expected: "widgets"},
		{name: "https without suffix", url: "https://github.com/team/widgets", expected: "widgets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractRepoName(tt.url))
		})
	}
}
