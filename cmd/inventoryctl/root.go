package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inventoryctl",
		Short:         "Inspect and rearrange the lab inventory record cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, withBlobs := cmd.Annotations[annotationBlobs]
			return a.open(cmd.Context(), withBlobs)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !a.dumpMetrics {
				return nil
			}
			return a.writeMetrics(cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "env files to load before the environment (default .env, .env.local)")
	cmd.PersistentFlags().BoolVar(&a.dumpMetrics, "metrics", false, "print service metrics to stderr after the command")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})

	cmd.AddCommand(
		newImportCmd(a),
		newShowCmd(a),
		newTreeCmd(a),
		newFindCmd(a),
		newMoveCmd(a),
		newDeleteCmd(a),
		newAttachCmd(a),
		newAttachmentsCmd(a),
	)
	return cmd
}

// exactArgs reports a wrong argument count as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(exitUsage, cobra.ExactArgs(n)(cmd, args))
	}
}

func blobCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationBlobs] = "true"
	return cmd
}
