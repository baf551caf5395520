package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newCASCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cas",
		Short: "Inspect and manage the content store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "put path...",
		Short: "Store files and directories, printing their digests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Put(cmd.Context(), args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get digest",
		Short: "Write a stored blob to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Get(cmd.Context(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stat digest...",
		Short: "Report whether digests are stored",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Stat(cmd.Context(), args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cat-tree digest",
		Short: "List the entries of a stored tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.CatTree(cmd.Context(), args[0])
		},
	})
	cmd.AddCommand(c.newGCCmd())

	return cmd
}

func (c *CLI) newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc [keep-digest...]",
		Short: "Remove every blob not reachable from the given digests",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if len(args) == 0 && !all {
				return zerr.Wrap(domain.ErrInvalidRequest, "refusing to empty the store without --all")
			}
			return c.app.GC(cmd.Context(), args)
		},
	}
	cmd.Flags().Bool("all", false, "Allow removing every blob when no digest is kept")
	return cmd
}
