package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

func commands() []command {
	return []command{
		generateCommand(),
		{
			name:    "parse",
			usage:   "parse <token>",
			summary: "Verify a token and print its kind and payload",
			run: func(ctx context.Context, s *session, args []string) error {
				value, err := oneArg("parse", args)
				if err != nil {
					return err
				}
				res, err := s.client.ParseToken(ctx, value)
				if err != nil {
					return err
				}
				return s.print(res)
			},
		},
		{
			name:    "refresh",
			usage:   "refresh <refresh-token>",
			summary: "Exchange a refresh token for a new pair",
			run: func(ctx context.Context, s *session, args []string) error {
				value, err := oneArg("refresh", args)
				if err != nil {
					return err
				}
				pair, err := s.client.RefreshToken(ctx, value)
				if err != nil {
					return err
				}
				return s.print(pair)
			},
		},
		clearCommand(),
		healthCommand(),
		keygenCommand(),
	}
}

func generateCommand() command {
	var (
		req   tokensdk.GenerateTokenRequest
		group string
		extra string
	)
	return command{
		name:    "generate",
		usage:   "generate --sub SUB --aud AUD [--jti] [--group G] [--extra E]",
		summary: "Issue an access/refresh pair",
		flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&req.Sub, "sub", "", "subject (required)")
			fs.StringVar(&req.Aud, "aud", "", "audience (required)")
			fs.BoolVar(&req.JTI, "jti", false, "attach a unique token id")
			fs.StringVar(&group, "group", "", "payload group")
			fs.StringVar(&extra, "extra", "", "payload extra")
		},
		run: func(ctx context.Context, s *session, _ []string) error {
			if req.Sub == "" || req.Aud == "" {
				return errors.New("generate: --sub and --aud are required")
			}
			if group != "" || extra != "" {
				req.Payload = &tokensdk.Payload{Sub: req.Sub, Group: group, Extra: extra}
			}
			pair, err := s.client.GenerateToken(ctx, req)
			if err != nil {
				return err
			}
			return s.print(pair)
		},
	}
}

func clearCommand() command {
	var sub string
	return command{
		name:    "clear",
		usage:   "clear --sub SUB",
		summary: "Drop the cached pair of a subject",
		flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&sub, "sub", "", "subject (required)")
		},
		run: func(ctx context.Context, s *session, _ []string) error {
			if sub == "" {
				return errors.New("clear: --sub is required")
			}
			if err := s.client.ClearCache(ctx, sub); err != nil {
				return err
			}
			_, err := fmt.Fprintf(s.out, "cleared %s\n", sub)
			return err
		},
	}
}

func healthCommand() command {
	var ready bool
	return command{
		name:    "health",
		usage:   "health [--ready]",
		summary: "Print liveness, or readiness with --ready",
		flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&ready, "ready", false, "query /readyz instead of /livez")
		},
		run: func(ctx context.Context, s *session, _ []string) error {
			get := s.client.GetLiveness
			if ready {
				get = s.client.GetReadiness
			}
			res, err := get(ctx)
			if err != nil {
				return err
			}
			return s.print(res)
		},
	}
}

// keygenCommand prints a value suitable for TOKEN_OCT_KEY. It never talks
// to the service.
func keygenCommand() command {
	var size int
	return command{
		name:    "keygen",
		usage:   "keygen [--bytes N]",
		summary: "Print a random signing key for TOKEN_OCT_KEY",
		flags: func(fs *pflag.FlagSet) {
			fs.IntVar(&size, "bytes", cryptox.SecretSize256, "key size in bytes")
		},
		run: func(_ context.Context, s *session, _ []string) error {
			key, err := cryptox.GenerateToken(size)
			if err != nil {
				return fmt.Errorf("keygen: %w", err)
			}
			_, err = fmt.Fprintln(s.out, key)
			return err
		},
	}
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%s: expected exactly one token argument", cmd)
	}
	return args[0], nil
}
