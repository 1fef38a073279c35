package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/flowcheck/internal/fixture"
)

func newFixtureCmd(a *app) *cobra.Command {
	var (
		addr        string
		consentAddr string
		name        string
		email       string
	)
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve a local application to run the oauth check against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := fixture.Start(ctx, fixture.Options{
				AppAddr:     addr,
				ConsentAddr: consentAddr,
				User:        fixture.User{Name: name, Email: email},
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Application: %s\n", f.AppURL)
			fmt.Fprintf(out, "Consent:     %s\n", f.ConsentURL)
			fmt.Fprintf(out, "Issuer:      %s\n", f.IssuerURL)
			fmt.Fprintf(out, "Signed-in user: %s <%s> (%s)\n", name, email, fixture.Initials(name))

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return f.Close(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:3000", "application listen address")
	cmd.Flags().StringVar(&consentAddr, "consent-addr", "localhost:5173", "consent page listen address")
	cmd.Flags().StringVar(&name, "user-name", fixture.DefaultUser.Name, "display name of the signed-in user")
	cmd.Flags().StringVar(&email, "user-email", fixture.DefaultUser.Email, "email of the signed-in user")
	return cmd
}
