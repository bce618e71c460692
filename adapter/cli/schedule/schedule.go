package schedule

import (
	"github.com/spf13/cobra"
)

// Cmd is the schedule command group
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect stored schedules",
	Long:  `View schedules produced by previous solves.`,
}

func init() {
	Cmd.AddCommand(showCmd)
}
