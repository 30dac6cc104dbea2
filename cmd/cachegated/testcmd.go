package main

import (
	"context"
	"fmt"

	"github.com/cachegate/cachegate/internal/engine"
	"github.com/spf13/cobra"
)

func testConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection <definition-file>",
		Short: "Verify reachability of a definition's datasource without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinitionFile(args[0])
			if err != nil {
				return err
			}
			eng := engine.New()
			fmt.Println(eng.TestConnection(context.Background(), def))
			return nil
		},
	}
}

func testQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-query <definition-file> <key>",
		Short: "Run a definition's query against a sample key without registering it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinitionFile(args[0])
			if err != nil {
				return err
			}
			eng := engine.New()
			fmt.Println(eng.TestQuery(context.Background(), def, args[1]))
			return nil
		},
	}
}
