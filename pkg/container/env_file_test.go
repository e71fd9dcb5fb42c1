package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvFileSimple(t *testing.T) {
	assert := assert.New(t)

	env, err := ParseEnvFile("FOO=bar\nresult=42\n")
	require.NoError(t, err)
	assert.Equal(map[string]string{
		"FOO":    "bar",
		"result": "42",
	}, env)
}

func TestParseEnvFileHeredoc(t *testing.T) {
	assert := assert.New(t)

	env, err := ParseEnvFile("JSON<<EOF\n{\n  \"a\": 1\n}\nEOF\nPLAIN=x\n")
	require.NoError(t, err)
	assert.Equal("{\n  \"a\": 1\n}", env["JSON"])
	assert.Equal("x", env["PLAIN"])
}

func TestParseEnvFileRepeatedKeyLastWins(t *testing.T) {
	env, err := ParseEnvFile("KEY=first\nKEY=second\n")
	require.NoError(t, err)
	assert.Equal(t, "second", env["KEY"])
}

func TestParseEnvFileUnterminatedHeredoc(t *testing.T) {
	_, err := ParseEnvFile("KEY<<EOF\nvalue\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated heredoc")
}

func TestParseEnvFileEmpty(t *testing.T) {
	env, err := ParseEnvFile("")
	require.NoError(t, err)
	assert.Empty(t, env)
}

// parsing a serialized mapping yields the same mapping back
func TestEnvFileRoundTrip(t *testing.T) {
	original := map[string]string{
		"SIMPLE":    "value",
		"MULTILINE": "first\nsecond\nthird",
		"EMPTY":     "",
		"NUMERIC":   "42",
	}

	parsed, err := ParseEnvFile(SerializeEnvFile(original))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}
