package app

import (
	"github.com/spf13/cobra"

	"github.com/forgeup/forgeup/internal/installer"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [component...]",
	Short: "Remove installed components",
	Long: `Uninstall deregisters the requested components from the environment,
drops their install records and deletes their install directories. With
no arguments every component is removed. Components that are not
installed are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := parseComponents(args)
		if err != nil {
			return err
		}

		inst, _, err := buildInstaller(cmd)
		if err != nil {
			return err
		}

		results := inst.Uninstall(cmd.Context(), comps)
		printResults("removed", results)
		return summaryExit(installer.Summarize(results), len(results))
	},
}
