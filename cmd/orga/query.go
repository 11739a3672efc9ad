package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/turbofish-org/orga/pkg/client"
)

var queryCmd = &cobra.Command{
	Use:   "query <path> <key>",
	Short: "read committed state from a running node over the Query RPC",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Uint64("height", 0, "height to query at (ignored: the node serves only the latest committed state)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	height, _ := cmd.Flags().GetUint64("height")

	c, err := client.NewClient(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("orga query: %w", err)
	}
	defer c.Close()

	code, value, proof, err := c.Query(args[0], []byte(args[1]), height)
	if err != nil {
		return fmt.Errorf("orga query: %w", err)
	}

	fmt.Printf("code: %d\nvalue: %s\n", code, value)
	if len(proof) > 0 {
		fmt.Printf("proof: %x\n", proof)
	}
	return nil
}
