package utils

import (
	"context"
	"testing"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/coretest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed always rolls the highest face minus off.
func fixed(off int) func(int) int {
	return func(n int) int { return n - 1 - off }
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		formula string
		total   int
		detail  string
	}{
		{"1d6", 6, "`1d6` [6]"},
		{"2d6+3", 15, "`2d6` [6, 6] + `3`"},
		{"d20 - 2", 18, "`d20` [20] - `2`"},
		{"2d4*3-1", 23, "`2d4` [4, 4] * `3` - `1`"},
		{"10/3", 3, "`10` / `3`"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			r, err := Evaluate(tt.formula, fixed(0))
			require.NoError(t, err)
			assert.Equal(t, tt.total, r.Total)
			assert.Equal(t, tt.detail, r.Detail)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	for _, formula := range []string{"", "abc", "*2", "1/0", "1d1", "101d6", "2d6+x"} {
		_, err := Evaluate(formula, fixed(0))
		assert.Error(t, err, formula)
	}
}

func run(t *testing.T, host *coretest.Host, name string, args ...string) error {
	t.Helper()
	mod := New()
	cmd := mod.Command(name)
	require.NotNil(t, cmd, name)
	return cmd.Execute(context.Background(), &core.Invocation{
		Message: coretest.Message("u1", ""),
		Args:    args,
		Host:    host,
		Command: cmd,
		Module:  mod,
	})
}

func TestInitPrimesSeparator(t *testing.T) {
	host := coretest.NewHost(t)
	require.NoError(t, New().Init(context.Background(), host))
	assert.Equal(t, "|", host.Cfg.String(separatorPath, ""))

	require.NoError(t, host.Cfg.Set(separatorPath, ","))
	require.NoError(t, New().Init(context.Background(), host))
	assert.Equal(t, ",", host.Cfg.String(separatorPath, ""), "init keeps existing settings")
}

func TestChoose(t *testing.T) {
	host := coretest.NewHost(t)
	exec := choose(func(n int) int { return n - 1 })

	inv := &core.Invocation{Message: coretest.Message("u1", ""), Args: []string{"tea", "|", "green", "coffee", "|"}, Host: host}
	require.NoError(t, exec(context.Background(), inv))
	assert.Equal(t, []string{"I choose **green coffee**"}, host.Cl.Texts())

	inv.Args = []string{"|", " "}
	assert.Error(t, exec(context.Background(), inv))
}

func TestEchoAndUptime(t *testing.T) {
	host := coretest.NewHost(t)
	require.NoError(t, run(t, host, "echo", "hello", "there"))
	require.NoError(t, run(t, host, "uptime"))

	assert.Equal(t, []string{"hello there", "Up for 1 minute"}, host.Cl.Texts())
}

func TestRollCommand(t *testing.T) {
	host := coretest.NewHost(t)
	exec := roll(fixed(0))

	inv := &core.Invocation{Message: coretest.Message("u1", ""), Args: []string{"2d6", "+", "1"}, Host: host}
	require.NoError(t, exec(context.Background(), inv))
	assert.Contains(t, host.Cl.Texts()[0], "**Result**: **13**")

	inv.Args = nil
	require.NoError(t, exec(context.Background(), inv))
	assert.Contains(t, host.Cl.Texts()[1], "**Result**: **6**")

	inv.Args = []string{"nonsense"}
	assert.Error(t, exec(context.Background(), inv))
}
