package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oakline/upkeep/internal/matching"
)

func newMatchCmd() *cobra.Command {
	var (
		configPath  string
		category    string
		urgency     string
		description string
		hours       float64
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Dry-run the deterministic contractor scoring",
		Long:  "Scores the active contractor roster against a hypothetical case without filing anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, configPath, matching.CaseInfo{
				Category:       category,
				Urgency:        urgency,
				Description:    description,
				EstimatedHours: hours,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "upkeep.yaml", "path to Upkeep config file")
	cmd.Flags().StringVar(&category, "category", "", "case category, e.g. HVAC or plumbing")
	cmd.Flags().StringVar(&urgency, "urgency", "Routine", "Emergency, Urgent, or Routine")
	cmd.Flags().StringVar(&description, "description", "", "free-form problem description")
	cmd.Flags().Float64Var(&hours, "hours", 0, "estimated duration of the job in hours")
	return cmd
}

func runMatch(cmd *cobra.Command, configPath string, info matching.CaseInfo) error {
	cfg, st, err := storeFromConfig(configPath)
	if err != nil {
		return err
	}

	candidates, err := st.ActiveContractors(cfg.Org.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	results := matching.Fallback(info, candidates)
	for i, r := range results {
		fmt.Fprintf(out, "%d. %-20s score %3d  %s\n", i+1, r.ContractorID, r.Score, r.Reasoning)
	}
	return nil
}
