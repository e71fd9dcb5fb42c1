package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartesianProductOrdered(t *testing.T) {
	assert := assert.New(t)

	input := map[string][]interface{}{
		"os":  {"X", "Y"},
		"ver": {1, 2},
	}
	rows := CartesianProductOrdered([]string{"os", "ver"}, input)

	assert.Equal([]map[string]interface{}{
		{"os": "X", "ver": 1},
		{"os": "X", "ver": 2},
		{"os": "Y", "ver": 1},
		{"os": "Y", "ver": 2},
	}, rows)
}

func TestCartesianProductLexicalOrder(t *testing.T) {
	assert := assert.New(t)

	input := map[string][]interface{}{
		"zeta":  {1, 2},
		"alpha": {"a", "b"},
	}

	first := CartesianProduct(input)
	for i := 0; i < 10; i++ {
		assert.Equal(first, CartesianProduct(input))
	}

	// alpha sorts first and is therefore the outer axis
	assert.Equal([]map[string]interface{}{
		{"alpha": "a", "zeta": 1},
		{"alpha": "a", "zeta": 2},
		{"alpha": "b", "zeta": 1},
		{"alpha": "b", "zeta": 2},
	}, first)
}

func TestCartesianProductEmpty(t *testing.T) {
	assert := assert.New(t)

	rows := CartesianProduct(map[string][]interface{}{})
	assert.Empty(rows)

	rows = CartesianProduct(map[string][]interface{}{"os": {}})
	assert.Empty(rows)
}
