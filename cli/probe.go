package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gammadia/quartermaster/cli/ui"
	"github.com/gammadia/quartermaster/cluster"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Detect the capacity of the local machine",
	Long:  "Detect the capacity of the local machine and print it as an inventory snippet.",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		port := lo.Must(cmd.Flags().GetInt("port"))

		spinner := ui.NewSpinner("Probing local machine")
		node, err := cluster.Probe(port)
		if err != nil {
			spinner.Fail()
			return fmt.Errorf("failed to probe the local machine: %w", err)
		}
		spinner.Success()

		inventory := cluster.Inventory{
			Version: cluster.InventoryVersion,
			Nodes: []cluster.InventoryNode{
				{
					Name:     string(node.Name()),
					Capacity: node.Capacity(),
				},
			},
		}

		cmd.PrintErrln(color.HiGreenString("Detected capacity: %s", node.Capacity()))
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(inventory)
	},
}

func init() {
	probeCmd.Flags().Int("port", 8041, "port the node agent would listen on")
}
