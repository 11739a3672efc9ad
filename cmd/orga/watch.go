package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/turbofish-org/orga/pkg/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "stream a running node's event feed until interrupted",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	c, err := client.NewClient(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("orga watch: %w", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	stream, err := c.Watch(ctx)
	if err != nil {
		return fmt.Errorf("orga watch: open stream: %w", err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("orga watch: %w", err)
		}
		fmt.Printf("[%s] %s\n", msg.Type, msg.Message)
	}
}
