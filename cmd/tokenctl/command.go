package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

const defaultURL = "http://127.0.0.1:3000"

var errUsage = errors.New("usage")

// command is one tokenctl subcommand.
type command struct {
	name    string
	usage   string
	summary string

	// flags registers the subcommand's flags; nil means none.
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, s *session, args []string) error
}

// session is what every subcommand gets: a client and somewhere to write.
type session struct {
	client *tokensdk.Client
	out    io.Writer
}

func (s *session) print(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func run(args []string, stdout, stderr io.Writer) error {
	global := pflag.NewFlagSet("tokenctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)

	baseURL := global.String("url", envOr("TOKENCTL_URL", defaultURL), "token service base URL")
	timeout := global.Duration("timeout", 10*time.Second, "request timeout")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr, global)
			return nil
		}
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return errUsage
	}

	cmd, ok := lookup(rest[0])
	if !ok {
		printUsage(stderr, global)
		return fmt.Errorf("unknown command %q", rest[0])
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stderr, "Usage:\n  tokenctl %s\n\n%s\n", cmd.usage, cmd.summary)
			fs.SetOutput(stderr)
			fs.PrintDefaults()
			return nil
		}
		return fmt.Errorf("%s: %w", cmd.name, err)
	}

	client, err := tokensdk.NewClient(*baseURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	return cmd.run(ctx, &session{client: client, out: stdout}, fs.Args())
}

func lookup(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage:\n  tokenctl [--url URL] <command> [flags]\n\nCommands:\n")
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	for _, c := range commands() {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	_ = tw.Flush()

	var flags strings.Builder
	global.SetOutput(&flags)
	global.PrintDefaults()
	global.SetOutput(io.Discard)
	fmt.Fprintf(w, "\nFlags:\n%s", flags.String())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
