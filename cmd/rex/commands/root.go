// Package commands implements the CLI commands for rex.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/rex/internal/app"
	"go.trai.ch/rex/internal/build"
	"go.trai.ch/rex/internal/core/ports"
)

// CLI represents the command line interface for rex.
type CLI struct {
	app     Application
	logger  ports.Logger
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Exec(ctx context.Context, specs []app.ExecSpec, opts app.ExecOptions) error
	Serve(ctx context.Context) error
	Put(ctx context.Context, paths []string) error
	Get(ctx context.Context, digest string) error
	Stat(ctx context.Context, digests []string) error
	CatTree(ctx context.Context, digest string) error
	GC(ctx context.Context, roots []string) error
}

// outputConfigurer is implemented by loggers whose format can be switched.
type outputConfigurer interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// New creates a new CLI instance with the given app.
func New(a Application, log ports.Logger) *CLI {
	rootCmd := &cobra.Command{
		Use:           "rex",
		Short:         "Run commands hermetically against content-addressed inputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	// -v belongs to --verbose; cobra's default version flag would claim it.
	rootCmd.Flags().Bool("version", false, "Print the application version")
	rootCmd.InitDefaultVersionFlag()

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().Bool("json", false, "Write logs and reports as JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug output, including process output as it streams")

	c := &CLI{
		app:     a,
		logger:  log,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		jsonMode, _ := cmd.Flags().GetBool("json")
		verbose, _ := cmd.Flags().GetBool("verbose")
		if oc, ok := c.logger.(outputConfigurer); ok {
			oc.SetJSON(jsonMode)
			oc.SetVerbose(verbose)
		}
	}

	rootCmd.AddCommand(c.newExecCmd())
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newCASCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
