package main

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/turbofish-org/orga/pkg/security"
	"github.com/turbofish-org/orga/pkg/store"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "manage the cluster's certificate authority and node/CLI certificates",
}

var certsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "initialize a new root CA and issue this node's certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		nodeID, _ := cmd.Flags().GetString("node-id")

		caStorePath := filepath.Join(cfg.DataDir, "ca.db")
		caStore, err := store.OpenBoltStore(caStorePath)
		if err != nil {
			return fmt.Errorf("open CA store: %w", err)
		}
		defer caStore.Close()

		ca := security.NewCertAuthority(caStore)
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("initialize CA: %w", err)
		}
		if err := ca.SaveToStore(); err != nil {
			return fmt.Errorf("save CA: %w", err)
		}

		cert, err := ca.IssueNodeCertificate(nodeID, "api", []string{"localhost", nodeID}, []net.IP{net.ParseIP("127.0.0.1")})
		if err != nil {
			return fmt.Errorf("issue node certificate: %w", err)
		}
		bundle, err := security.NodeBundle(nodeID)
		if err != nil {
			return fmt.Errorf("cert bundle: %w", err)
		}
		if err := bundle.Write(cert, ca.GetRootCACert()); err != nil {
			return fmt.Errorf("write node certificate bundle: %w", err)
		}

		fmt.Printf("root CA initialized in %s\nnode certificate issued for %q in %s\n", caStorePath, nodeID, bundle.Dir)
		return nil
	},
}

var certsIssueClientCmd = &cobra.Command{
	Use:   "issue-client <client-id>",
	Short: "issue a CLI certificate from an already-initialized CA",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		clientID := args[0]

		caStorePath := filepath.Join(cfg.DataDir, "ca.db")
		caStore, err := store.OpenBoltStore(caStorePath)
		if err != nil {
			return fmt.Errorf("open CA store: %w", err)
		}
		defer caStore.Close()

		ca := security.NewCertAuthority(caStore)
		if err := ca.LoadFromStore(); err != nil {
			return fmt.Errorf("load CA (run 'orga certs init' first): %w", err)
		}

		cert, err := ca.IssueClientCertificate(clientID)
		if err != nil {
			return fmt.Errorf("issue client certificate: %w", err)
		}
		bundle, err := security.CLIBundle()
		if err != nil {
			return fmt.Errorf("cli cert bundle: %w", err)
		}
		if err := bundle.Write(cert, ca.GetRootCACert()); err != nil {
			return fmt.Errorf("write client certificate bundle: %w", err)
		}

		fmt.Printf("client certificate for %q issued in %s\n", clientID, bundle.Dir)
		return nil
	},
}

func init() {
	certsCmd.AddCommand(certsInitCmd, certsIssueClientCmd)
	rootCmd.AddCommand(certsCmd)
}
