package app

import (
	"github.com/spf13/cobra"

	"github.com/forgeup/forgeup/internal/installer"
)

var installCmd = &cobra.Command{
	Use:   "install [component[@version]...]",
	Short: "Install components for the selected targets",
	Long: `Install downloads, verifies and unpacks the requested components and
updates the environment to point at them. With no arguments every
component is installed. A version may be pinned per component with
name@version; a three-segment version resolves to its newest release.

Re-running install for an already installed version is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := parseComponents(args)
		if err != nil {
			return err
		}

		inst, _, err := buildInstaller(cmd)
		if err != nil {
			return err
		}

		results := inst.Install(cmd.Context(), comps)
		printResults("installed", results)

		sum := installer.Summarize(results)
		if sum.Failed == 0 && sum.Succeeded > sum.Skipped {
			printSourceHint(inst)
		}
		return summaryExit(sum, len(results))
	},
}
