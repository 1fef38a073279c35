package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kuitang/flowcheck/internal/config"
	"github.com/kuitang/flowcheck/internal/ratelimit"
	"github.com/kuitang/flowcheck/internal/runner"
	"github.com/kuitang/flowcheck/internal/s3client"
	"github.com/kuitang/flowcheck/internal/terminal"
)

func newOAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "oauth",
		Short: "Walk the login redirect and OAuth consent round trip",
		Long: `oauth opens BASE_URL, expects a redirect to the login page, clicks the
login control, continues on the OAuth consent page and verifies the browser
returns to the application root. When --expect-initials is set it also looks
for the signed-in user's initials in the navigation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, runner.OAuth)
		},
	}
}

func newSmokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "smoke",
		Aliases: []string{"generic"},
		Short:   "Load a page, describe it, and keep the browser open",
		Long: `smoke opens BASE_URL, checks that the page rendered content, records DOM
statistics and Vue detection, then keeps the browser open for
SESSION_TIMEOUT milliseconds of manual testing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, runner.Smoke)
		},
	}
}

func (a *app) runCheck(cmd *cobra.Command, build func(*config.Config) runner.Check) error {
	cfg, err := a.flags.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	check := build(cfg)
	cfg.PrintStartupSummary(cmd.ErrOrStderr(), check.TestName)

	uploader, err := a.uploader(ctx, cfg)
	if err != nil {
		return err
	}
	r := &runner.Runner{
		Config:   cfg,
		Launch:   a.launch,
		Out:      terminal.NewWithOutput(cmd.OutOrStdout(), ratelimit.NewEchoLimiter(cfg.EchoConfig)),
		Uploader: uploader,
	}
	_, err = r.Run(ctx, check)
	return err
}

func (a *app) uploader(ctx context.Context, cfg *config.Config) (runner.Uploader, error) {
	if !cfg.UploadEnabled() {
		return nil, nil
	}
	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.ResultsBucket,
		UsePathStyle:    cfg.AWSUsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
