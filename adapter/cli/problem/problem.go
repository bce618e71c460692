package problem

import (
	"github.com/spf13/cobra"
)

// Cmd is the problem command group
var Cmd = &cobra.Command{
	Use:   "problem",
	Short: "Manage scheduling problem definitions",
	Long:  `Import and manage patterns, resources and job instances.`,
}

func init() {
	Cmd.AddCommand(importCmd)
}
