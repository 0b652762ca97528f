package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gammadia/quartermaster/cluster"
	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Inspect cluster inventory files",
}

var inventoryValidateCmd = &cobra.Command{
	Use:   "validate INVENTORY",
	Short: "Validate an inventory file and list its nodes",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := cluster.ReadInventory(args[0])
		if err != nil {
			return fmt.Errorf("invalid inventory '%s': %w", args[0], err)
		}

		cmd.Printf("%-24s  %-16s  %-24s  %s\n", "NAME", "RACK", "HTTP", "CAPACITY")
		for _, node := range nodes {
			cmd.Printf("%s  %-16s  %-24s  %s\n",
				color.HiCyanString("%-24s", node.Name()), node.RackName(), node.HTTPAddress(), node.Capacity())
		}

		cmd.PrintErrln(color.HiGreenString("Inventory '%s' is valid (%d nodes)", args[0], len(nodes)))
		return nil
	},
}

func init() {
	inventoryCmd.AddCommand(inventoryValidateCmd)
}
