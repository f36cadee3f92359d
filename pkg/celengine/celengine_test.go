package celengine

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) *cel.Env {
	t.Helper()
	env, err := NewEnv(map[string]*cel.Type{
		"category":  cel.StringType,
		"age_hours": cel.DoubleType,
	})
	require.NoError(t, err)
	return env
}

func TestCompileAndEval(t *testing.T) {
	p, err := Compile(testEnv(t), `category == "SUBSCRIPTION" && age_hours >= 720.0`)
	require.NoError(t, err)

	ok, err := p.Eval(map[string]any{"category": "SUBSCRIPTION", "age_hours": 800.0})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Eval(map[string]any{"category": "GIFT_CARD", "age_hours": 800.0})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileRejectsNonBool(t *testing.T) {
	_, err := Compile(testEnv(t), `age_hours + 1.0`)
	require.ErrorIs(t, err, ErrNotBool)
}

func TestCompileRejectsUnknownVariable(t *testing.T) {
	_, err := Compile(testEnv(t), `owner == "x"`)
	require.Error(t, err)
}

func TestEvalMissingAttribute(t *testing.T) {
	p, err := Compile(testEnv(t), `age_hours > 1.0`)
	require.NoError(t, err)

	_, err = p.Eval(map[string]any{})
	require.Error(t, err)
}
