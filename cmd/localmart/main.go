/*
Package main is the localmart command-line client.

It drives the client core from a shell: the persisted session (login, register,
logout, whoami), the product catalogue and live chat over the configured transport.
Configuration comes from LOCALMART_* environment variables and an optional .env file.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"localmart/internal/app/api"
	"localmart/internal/app/chat"
	"localmart/internal/app/credstore"
	"localmart/internal/app/session"
	"localmart/internal/configs"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errs.Message(err))
		logx.Debug("Command failed", "error", err.Error())
		os.Exit(1)
	}
}

// command is one subcommand. flags is parsed before exec runs.
type command struct {
	summary string
	flags   func(fs *pflag.FlagSet) func(ctx context.Context, a *app) error
}

var commands = map[string]command{
	"login":    {summary: "sign in and store the session", flags: loginCommand},
	"register": {summary: "create an account", flags: registerCommand},
	"logout":   {summary: "end the session and forget the stored token", flags: logoutCommand},
	"whoami":   {summary: "show the signed-in user, checking the token with the server", flags: whoamiCommand},
	"products": {summary: "list products matching a filter", flags: productsCommand},
	"stats":    {summary: "show your listing analytics", flags: statsCommand},
	"chat":     {summary: "join a chat room and exchange messages", flags: chatCommand},
}

var commandOrder = []string{"login", "register", "logout", "whoami", "products", "stats", "chat"}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := pflag.NewFlagSet("localmart "+args[0], pflag.ContinueOnError)
	fs.SetOutput(stdout)
	exec := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := configs.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		return err
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.SetLevel(cfg.LogLevel)

	a, err := newApp(ctx, cfg, stdin, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.Bootstrap(ctx); err != nil {
		return err
	}
	return exec(ctx, a)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: localmart <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'localmart <command> --help' for the flags of a command.")
}

// app is the wired client core.
type app struct {
	cfg     *configs.ClientConfig
	store   credstore.Store
	api     *api.Client
	session *session.Session
	stdin   io.Reader
	out     io.Writer
}

func newApp(ctx context.Context, cfg *configs.ClientConfig, stdin io.Reader, stdout io.Writer) (*app, error) {
	store, err := credstore.Open(ctx, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL: cfg.APIURL,
		Tokens:  store,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	sess, err := session.New(session.Config{
		API:                    client,
		Store:                  store,
		ValidateInterval:       cfg.ValidateInterval,
		MinPasswordLength:      cfg.MinPasswordLength,
		AutoLoginAfterRegister: cfg.AutoLoginAfterRegister,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store, api: client, session: sess, stdin: stdin, out: stdout}, nil
}

func (a *app) close() {
	a.session.Close()
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logx.Warn("Failed to close credential store", "error", err.Error())
		}
	}
}

// transport builds the chat transport selected by LOCALMART_CHAT_STRATEGY.
func (a *app) transport() (chat.Transport, error) {
	if a.cfg.ChatStrategy == configs.ChatPolling {
		return chat.NewPollingTransport(chat.PollingConfig{API: a.api, Interval: a.cfg.PollInterval})
	}

	// In configuration zero attempts means no reconnects; the transport reads zero as its default.
	attempts := a.cfg.MaxReconnectAttempts
	if attempts == 0 {
		attempts = -1
	}
	return chat.NewSocketTransport(chat.SocketConfig{
		BaseURL:              a.cfg.APIURL,
		Tokens:               a.store,
		Dial:                 chat.GorillaDialer(nil),
		ReconnectBaseDelay:   a.cfg.ReconnectBaseDelay,
		MaxReconnectAttempts: attempts,
	})
}
