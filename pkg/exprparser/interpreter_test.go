package exprparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEnv() *EvaluationEnv {
	return &EvaluationEnv{
		Github: map[string]interface{}{
			"workflow":   "test-workflow",
			"actor":      "wrkflw",
			"run_id":     "1",
			"run_number": "1",
		},
		Runner: map[string]interface{}{
			"os": "Linux",
		},
		Matrix: map[string]interface{}{
			"os":  "ubuntu-latest",
			"ver": float64(2),
		},
		Steps: map[string]interface{}{
			"build": map[string]interface{}{
				"outputs": map[string]interface{}{
					"result": "42",
				},
				"conclusion": "success",
			},
		},
		Env: map[string]string{
			"FOO": "bar",
		},
		Inputs: map[string]interface{}{
			"deploy-env": "staging",
		},
	}
}

func TestEvaluate(t *testing.T) {
	assert := assert.New(t)
	ee := NewInterpreter(testEnv(), RunStatusSuccess)

	tables := []struct {
		in      string
		out     string
		errMesg string
	}{
		{" 1 ", "1", ""},
		{"'my text'", "my text", ""},
		{"'it''s'", "it's", ""},
		{"true", "true", ""},
		{"false", "false", ""},
		{"null", "", ""},
		{"github.workflow", "test-workflow", ""},
		{"github.actor", "wrkflw", ""},
		{"github.run_id", "1", ""},
		{"runner.os", "Linux", ""},
		{"matrix.os", "ubuntu-latest", ""},
		{"matrix.ver", "2", ""},
		{"steps.build.outputs.result", "42", ""},
		{"steps.build.conclusion", "success", ""},
		{"steps.missing.outputs.result", "", ""},
		{"env.FOO", "bar", ""},
		{"inputs.deploy-env", "staging", ""},
		{"matrix.os == 'ubuntu-latest'", "true", ""},
		{"matrix.os == 'UBUNTU-LATEST'", "true", ""},
		{"matrix.ver == 2", "true", ""},
		{"matrix.ver != 2", "false", ""},
		{"1 == 2 || 2 == 2", "true", ""},
		{"1 == 2 && 2 == 2", "false", ""},
		{"!false", "true", ""},
		{"(1 == 1)", "true", ""},
		{"success()", "true", ""},
		{"failure()", "false", ""},
		{"always()", "true", ""},
		{"cancelled()", "false", ""},
		{"github.missing", "", ""},
		{"1 + 3", "", "unsupported expression \"1 + 3\": unexpected character '+' at offset 2"},
		{"contains('my text', 'te')", "", "unsupported expression \"contains('my text', 'te')\": function \"contains\" with arguments is not supported"},
		{"format('{0}', 'x')", "", "unsupported expression \"format('{0}', 'x')\": function \"format\" with arguments is not supported"},
		{"github['actor']", "", "unsupported expression \"github['actor']\": unexpected character '[' at offset 6"},
	}

	for _, table := range tables {
		table := table
		t.Run(table.in, func(t *testing.T) {
			out, err := ee.Evaluate(table.in)
			if table.errMesg == "" {
				assert.NoError(err, table.in)
				assert.Equal(table.out, formatValue(out))
			} else {
				assert.Error(err)
				assert.Equal(table.errMesg, err.Error())
			}
		})
	}
}

func TestEvaluateStatus(t *testing.T) {
	assert := assert.New(t)

	ee := NewInterpreter(testEnv(), RunStatusFailure)
	out, err := ee.Evaluate("failure()")
	assert.NoError(err)
	assert.Equal(true, out)
	out, err = ee.Evaluate("success()")
	assert.NoError(err)
	assert.Equal(false, out)

	ee = NewInterpreter(testEnv(), RunStatusCancelled)
	out, err = ee.Evaluate("cancelled()")
	assert.NoError(err)
	assert.Equal(true, out)
	out, err = ee.Evaluate("always()")
	assert.NoError(err)
	assert.Equal(true, out)
}

func TestInterpolate(t *testing.T) {
	assert := assert.New(t)
	ee := NewInterpreter(testEnv(), RunStatusSuccess)

	out, err := ee.Interpolate(" ${{ 1 }} to ${{ 2 }} ")
	assert.NoError(err)
	assert.Equal(" 1 to 2 ", out)

	out, err = ee.Interpolate("result is ${{ steps.build.outputs.result }}")
	assert.NoError(err)
	assert.Equal("result is 42", out)

	out, err = ee.Interpolate("plain text")
	assert.NoError(err)
	assert.Equal("plain text", out)

	_, err = ee.Interpolate("${{ hashFiles('x') }}")
	assert.Error(err)
	var unsupported *UnsupportedExpressionError
	assert.ErrorAs(err, &unsupported)
}

func TestContainsStatusFunction(t *testing.T) {
	assert.True(t, ContainsStatusFunction("always()"))
	assert.True(t, ContainsStatusFunction("failure() || success()"))
	assert.True(t, ContainsStatusFunction("always ()"))
	assert.False(t, ContainsStatusFunction("matrix.os == 'linux'"))
	assert.False(t, ContainsStatusFunction("env.always"))
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, IsTruthy(nil))
	assert.False(t, IsTruthy(""))
	assert.False(t, IsTruthy(float64(0)))
	assert.False(t, IsTruthy(false))
	assert.True(t, IsTruthy("x"))
	assert.True(t, IsTruthy(float64(1)))
	assert.True(t, IsTruthy(true))
}
