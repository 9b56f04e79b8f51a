package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakline/upkeep/internal/completion"
	"github.com/oakline/upkeep/internal/matching"
	"github.com/oakline/upkeep/internal/triage"
)

func newTriageCmd() *cobra.Command {
	var (
		configPath  string
		requesterID string
	)

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Run an intake conversation from the terminal",
		Long:  "Starts an interactive intake session against the configured completion service, filing the case when it completes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriage(cmd, configPath, requesterID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "upkeep.yaml", "path to Upkeep config file")
	cmd.Flags().StringVar(&requesterID, "requester", "", "party ID to file the case under")
	return cmd
}

func runTriage(cmd *cobra.Command, configPath, requesterID string) error {
	cfg, st, err := storeFromConfig(configPath)
	if err != nil {
		return err
	}

	client, err := completion.NewHTTP(completion.HTTPOpts{
		BaseURL: cfg.Completion.BaseURL,
		APIKey:  cfg.Completion.APIKey,
		Model:   cfg.Completion.Model,
	})
	if err != nil {
		return err
	}

	manager, err := triage.NewManager(triage.ManagerOpts{
		Client:  client,
		Store:   st,
		Matcher: matching.NewEngine(matching.EngineOpts{Completion: client}),
		OrgID:   cfg.Org.ID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Describe the problem (empty line to quit):")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	ctx := context.Background()
	sessionID := ""

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}

		var reply *triage.Reply
		if sessionID == "" {
			reply, err = manager.Start(ctx, requesterID, line)
		} else {
			reply, err = manager.Message(ctx, sessionID, line)
		}
		if err != nil {
			return err
		}
		sessionID = reply.SessionID

		fmt.Fprintln(out, reply.Content)
		if reply.Completed {
			fmt.Fprintf(out, "Case filed: %s\n", reply.CaseID)
			return nil
		}
	}
}
