package app

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the host platform and installed components",
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, host, err := buildInstaller(cmd)
		if err != nil {
			return err
		}

		if host.Description != "" {
			fmt.Printf("Host: %s (%s)\n", host.Triple, host.Description)
		} else {
			fmt.Printf("Host: %s\n", host.Triple)
		}
		fmt.Println()

		records := inst.Installed()
		if len(records) == 0 {
			fmt.Println("No components installed. Run 'forgeup install' to get started.")
			return nil
		}

		useColor := stdoutIsTTY()
		for _, rec := range records {
			id := rec.Identity()
			if useColor {
				id = color.Green.Sprint(id)
			}
			fmt.Printf("%s  %s\n    %s (installed %s)\n", id, rec.Version, rec.InstallPath, rec.InstalledAt.Format("2006-01-02"))
		}
		return nil
	},
}
