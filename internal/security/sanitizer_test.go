package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCommand_Basics(t *testing.T) {
	got, err := SanitizeCommand("echo 'hello'   ")
	require.NoError(t, err)
	assert.Equal(t, "echo 'hello'", got)

	got, err = SanitizeCommand("echo\x00 'x'   y")
	require.NoError(t, err)
	assert.Equal(t, "echo 'x' y", got)
}

func TestSanitizeCommand_SuspiciousMetachars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "doubled semicolons", input: "a;;b", want: `a\;;b`},
		{name: "single semicolon untouched", input: "a; b", want: "a; b"},
		{name: "pipe into command", input: "cat f | grep x", want: `cat f \| grep x`},
		{name: "double ampersand untouched", input: "make && make install", want: "make && make install"},
		{name: "single ampersand escaped", input: "server &", want: `server \&`},
		{name: "command substitution", input: "echo $(whoami)", want: `echo \$(whoami)`},
		{name: "plain dollar untouched", input: "echo $HOME", want: "echo $HOME"},
		{name: "backtick escaped", input: "echo `date`", want: "echo \\`date\\`"},
		{name: "quoted metachars untouched", input: "echo 'a | b'", want: "echo 'a | b'"},
		{name: "double quoted untouched", input: `echo "x | y"`, want: `echo "x | y"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeCommand_Idempotent(t *testing.T) {
	inputs := []string{
		"echo 'hello'",
		"a;;b",
		"cat f | grep x",
		"echo $(whoami)",
		"echo `date`",
		"server &",
		"echo\x00 'x'   y",
		"make && make install",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			once, err := SanitizeCommand(input)
			require.NoError(t, err)
			twice, err := SanitizeCommand(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestSanitizeCommand_TooLong(t *testing.T) {
	_, err := SanitizeCommand(strings.Repeat("a", 2001))
	assert.Error(t, err)
}

func TestSanitizeVariableName(t *testing.T) {
	for _, valid := range []string{"valid_name", "_private", "var123"} {
		got, err := SanitizeVariableName(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, got)
	}

	for _, invalid := range []string{"123invalid", "var-name", "var name", "", strings.Repeat("x", 65)} {
		_, err := SanitizeVariableName(invalid)
		assert.Error(t, err, "should reject %q", invalid)
	}
}

func TestSanitizeVariableValue(t *testing.T) {
	got, err := SanitizeVariableValue("line1\nline2\r")
	require.NoError(t, err)
	assert.Equal(t, `line1\nline2\r`, got)

	got, err = SanitizeVariableValue("with\x00nul")
	require.NoError(t, err)
	assert.Equal(t, "withnul", got)

	_, err = SanitizeVariableValue(strings.Repeat("v", 1025))
	assert.Error(t, err)
}

func TestSanitizePath(t *testing.T) {
	got, err := SanitizePath("./safe/path")
	require.NoError(t, err)
	assert.Equal(t, "./safe/path", got)

	got, err = SanitizePath("relative//path.txt")
	require.NoError(t, err)
	assert.Equal(t, "relative/path.txt", got)

	for _, bad := range []string{"../../../etc/passwd", "/etc/passwd", "/dev/sda", "/root/.ssh/id_rsa"} {
		_, err := SanitizePath(bad)
		assert.Error(t, err, "should reject %q", bad)
	}

	_, err = SanitizePath("/tmp/" + strings.Repeat("p", 256))
	assert.Error(t, err)
}
