// Command flowcheck drives a real browser through an application's login
// flow or a plain page load and writes a results bundle for each run.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuitang/flowcheck/internal/browser"
	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/runner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries what the commands need from the process.
type app struct {
	out    io.Writer
	errOut io.Writer
	launch browser.Launcher
	flags  flagValues
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{out: os.Stdout, errOut: os.Stderr, launch: browser.Launch}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(runner.ExitCode(err))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowcheck",
		Short: "Browser checks for login flows and page loads",
		Long: `flowcheck opens Chromium against a running application, walks the
login redirect and OAuth consent round trip (oauth) or loads a page and
keeps it open for manual testing (smoke), and saves screenshots, console
output, network events and a summary for every run.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obs.InitWithLevel(a.errOut, a.flags.logLevel)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	a.flags.register(root)

	root.AddCommand(
		newOAuthCmd(a),
		newSmokeCmd(a),
		newFixtureCmd(a),
		newVersionCmd(root),
	)
	return root
}

func newVersionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flowcheck %s\n", root.Version)
		},
	}
}
