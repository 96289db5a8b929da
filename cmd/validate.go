package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chainsim/chainsim/sim/chain"
)

// validateCmd checks a chain file without simulating it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a chain definition for structural errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := chain.LoadPathSpec(pathFilePath)
		if err != nil {
			return err
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("%s: %w", pathFilePath, err)
		}
		logrus.Debugf("validated %s", pathFilePath)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d stages OK\n", pathFilePath, len(spec.Nodes))
		return nil
	},
}
