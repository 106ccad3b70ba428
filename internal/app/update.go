package app

import (
	"github.com/spf13/cobra"

	"github.com/forgeup/forgeup/internal/installer"
)

var updateCmd = &cobra.Command{
	Use:   "update [component...]",
	Short: "Move components to their newest published versions",
	Long: `Update re-resolves each requested component against the newest
published release and installs it. The superseded install directory is
removed only after the new version is fully recorded and configured, so
an interrupted update never leaves the old version broken. Components
already at the newest version are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := parseComponents(args)
		if err != nil {
			return err
		}

		inst, _, err := buildInstaller(cmd)
		if err != nil {
			return err
		}

		results := inst.Update(cmd.Context(), comps)
		printResults("updated", results)
		return summaryExit(installer.Summarize(results), len(results))
	},
}
