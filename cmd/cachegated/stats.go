package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cachegate/cachegate/internal/engine"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <definition-file>",
		Short: "Transiently register a definition, print its statistics as JSON, then unregister it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinitionFile(args[0])
			if err != nil {
				return err
			}
			eng := engine.New()

			id, err := eng.Register(context.Background(), def)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			defer eng.Unregister(id)

			stats, err := eng.Statistics(id)
			if err != nil {
				return fmt.Errorf("statistics: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
