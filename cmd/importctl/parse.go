package main

import (
	unitparser "community-intelligence-backend/service/unit-parser"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type parseOutput struct {
	Path        string                     `json:"path"`
	Association string                     `json:"association"`
	Parsed      *unitparser.ParsedUnitInfo `json:"parsed"`
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <path>...",
		Short: "Show how archive entry paths resolve to units",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			for _, path := range args {
				out := parseOutput{
					Path:        path,
					Association: unitparser.ExtractAssociationName(path),
					Parsed:      unitparser.ParseUnitFromPath(path),
				}
				if err := encoder.Encode(out); err != nil {
					return fmt.Errorf("failed to write output: %v", err)
				}
			}
			return nil
		},
	}
}
