package main

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localmart/internal/app/api"
	"localmart/internal/app/credstore"
	"localmart/internal/app/session"
	"localmart/internal/configs"
)

func loggedInApp(t *testing.T, apiURL, email string, out *lockedBuffer) *app {
	t.Helper()
	ctx := context.Background()

	store := credstore.NewMemoryStore()
	client, err := api.New(api.Config{BaseURL: apiURL, Tokens: store})
	require.NoError(t, err)
	_, err = client.Register(ctx, api.RegisterRequest{Email: email, Password: chatPassword})
	require.NoError(t, err)

	sess, err := session.New(session.Config{API: client, Store: store})
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	require.NoError(t, sess.Login(ctx, email, chatPassword))

	return &app{
		cfg:     &configs.ClientConfig{APIURL: apiURL},
		store:   store,
		api:     client,
		session: sess,
		stdin:   strings.NewReader(""),
		out:     out,
	}
}

func runCommand(t *testing.T, a *app, factory func(*pflag.FlagSet) func(context.Context, *app) error, args ...string) error {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	exec := factory(fs)
	require.NoError(t, fs.Parse(args))
	return exec(context.Background(), a)
}

func TestStatsCommand(t *testing.T) {
	apiURL := startDevServer(t)
	out := &lockedBuffer{}
	a := loggedInApp(t, apiURL, "maker@example.com", out)

	lamp, err := a.api.CreateProduct(context.Background(), api.ProductInput{Title: "Lamp", Price: "12"})
	require.NoError(t, err)

	require.NoError(t, runCommand(t, a, statsCommand, "--timeframe", "month"))
	assert.Contains(t, out.String(), "Listings: 1 (1 active)")
	assert.Contains(t, out.String(), "THIS MONTH")

	require.NoError(t, runCommand(t, a, statsCommand, "--product", strconv.FormatInt(lamp.ID, 10)))
	assert.Contains(t, out.String(), "0 views")

	err = runCommand(t, a, statsCommand, "--timeframe", "decade")
	assert.Error(t, err)
}

func TestFormatTrend(t *testing.T) {
	assert.Equal(t, "-", formatTrend(nil))
	v := -12.5
	assert.Equal(t, "-12.5%", formatTrend(&v))
	v = 40
	assert.Equal(t, "+40.0%", formatTrend(&v))
}
