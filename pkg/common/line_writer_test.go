package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineWriter(t *testing.T) {
	assert := assert.New(t)

	lines := make([]string, 0)
	lineHandler := func(s string) bool {
		lines = append(lines, s)
		return true
	}

	lineWriter := NewLineWriter(lineHandler)

	_, _ = lineWriter.Write([]byte("hello"))
	_, _ = lineWriter.Write([]byte(" world!!\nextra"))
	_, _ = lineWriter.Write([]byte(" line\n and another\nlast"))

	assert.Equal([]string{"hello world!!\n", "extra line\n", " and another\n"}, lines)
}
