package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/rex/internal/app"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [flags] -- command [args...]",
		Short: "Run a command in a sandbox built from its declared inputs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, _ := cmd.Flags().GetString("batch")
			if len(args) == 0 && batch == "" {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}

			var specs []app.ExecSpec
			if batch != "" {
				loaded, err := app.LoadBatch(batch)
				if err != nil {
					return err
				}
				specs = loaded
			}
			if len(args) > 0 {
				spec, err := specFromFlags(cmd, args)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}

			jobs, _ := cmd.Flags().GetInt("jobs")
			export, _ := cmd.Flags().GetBool("export")
			jsonMode, _ := cmd.Flags().GetBool("json")

			return c.app.Exec(cmd.Context(), specs, app.ExecOptions{
				Jobs:   jobs,
				JSON:   jsonMode,
				Export: export,
			})
		},
	}
	cmd.Flags().StringSliceP("input", "i", nil, "Glob of input files below the project root (repeatable)")
	cmd.Flags().StringSlice("exclude", nil, "Glob of files to leave out of the inputs (repeatable)")
	cmd.Flags().String("input-root", "", "Digest of a stored tree merged into the inputs")
	cmd.Flags().StringSliceP("output", "o", nil, "Output file to capture (repeatable)")
	cmd.Flags().StringSlice("output-dir", nil, "Output directory to capture (repeatable)")
	cmd.Flags().StringP("workdir", "w", "", "Working directory inside the sandbox")
	cmd.Flags().DurationP("timeout", "t", 0, "Kill the command after this duration")
	cmd.Flags().StringArrayP("env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringP("description", "d", "", "Human readable name of the action")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the action cache")
	cmd.Flags().String("batch", "", "YAML file listing actions to run")
	cmd.Flags().IntP("jobs", "j", 0, "Actions submitted at once (default local.concurrency)")
	cmd.Flags().Bool("export", false, "Write outputs of successful actions into the project root")
	return cmd
}

func specFromFlags(cmd *cobra.Command, argv []string) (app.ExecSpec, error) {
	flags := cmd.Flags()
	inputs, _ := flags.GetStringSlice("input")
	exclude, _ := flags.GetStringSlice("exclude")
	inputRoot, _ := flags.GetString("input-root")
	outputs, _ := flags.GetStringSlice("output")
	outputDirs, _ := flags.GetStringSlice("output-dir")
	workdir, _ := flags.GetString("workdir")
	timeout, _ := flags.GetDuration("timeout")
	envPairs, _ := flags.GetStringArray("env")
	description, _ := flags.GetString("description")
	noCache, _ := flags.GetBool("no-cache")

	env := make(map[string]string, len(envPairs))
	for _, pair := range envPairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return app.ExecSpec{}, zerr.With(zerr.Wrap(domain.ErrInvalidRequest, "environment must be KEY=VALUE"), "env", pair)
		}
		env[k] = v
	}

	return app.ExecSpec{
		Argv:              argv,
		Env:               env,
		Inputs:            inputs,
		Exclude:           exclude,
		InputRoot:         inputRoot,
		OutputFiles:       outputs,
		OutputDirectories: outputDirs,
		WorkingDirectory:  workdir,
		Timeout:           timeout,
		Description:       description,
		NoCache:           noCache,
	}, nil
}
