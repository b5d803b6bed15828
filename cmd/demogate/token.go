package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jwtkit "github.com/PaulFidika/demogate/jwt"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	var outDir string
	var bits int
	cmd := &cobra.Command{
		Use:         "keygen",
		Short:       "Generate an RS256 key pair for local development",
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := jwtkit.NewRSASigner(bits, "")
			if err != nil {
				return err
			}
			priv, err := signer.PrivateKeyPEM()
			if err != nil {
				return err
			}
			pub, err := signer.PublicKeyPEM()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return err
			}
			privPath := filepath.Join(outDir, "private.pem")
			pubPath := filepath.Join(outDir, "public.pem")
			if err := os.WriteFile(privPath, priv, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\nset JWT_PUBLIC_KEY_FILE=%s\n", privPath, pubPath, pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".keys", "Directory for private.pem and public.pem")
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	return cmd
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var keyFile, subject string
	var entitlements []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing of gated features",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("read private key: %w", err)
			}
			signer, err := jwtkit.NewRSASignerFromPEM("", b)
			if err != nil {
				return err
			}
			claims := jwtkit.NewClaims(cfg.Auth.Issuer, cfg.Auth.Audience, subject, entitlements, ttl)
			tok, err := signer.Sign(cmd.Context(), claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", ".keys/private.pem", "PEM private key")
	cmd.Flags().StringVar(&subject, "sub", "dev-user", "Token subject")
	cmd.Flags().StringSliceVar(&entitlements, "entitlement", nil, "Entitlements to grant (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
