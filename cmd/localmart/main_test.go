package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), nil, strings.NewReader(""), &out))

	for _, name := range commandOrder {
		assert.Contains(t, out.String(), name)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"buy"}, strings.NewReader(""), &out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "buy")
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunCommandHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"products", "--help"}, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "--min-price")
}

func TestCommandOrderListsEveryCommand(t *testing.T) {
	assert.Len(t, commandOrder, len(commands))
	for _, name := range commandOrder {
		_, ok := commands[name]
		assert.True(t, ok, name)
	}
}

func TestPasswordFallsBackToEnvironment(t *testing.T) {
	t.Setenv(passwordEnv, "from-env")

	assert.Equal(t, "flag", password("flag"))
	assert.Equal(t, "from-env", password(""))
}
