package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakline/upkeep/internal/approval"
	"github.com/oakline/upkeep/internal/completion"
	"github.com/oakline/upkeep/internal/config"
	"github.com/oakline/upkeep/internal/httpapi"
	"github.com/oakline/upkeep/internal/matching"
	"github.com/oakline/upkeep/internal/notify"
	"github.com/oakline/upkeep/internal/notify/email"
	"github.com/oakline/upkeep/internal/notify/opschat"
	"github.com/oakline/upkeep/internal/notify/sms"
	"github.com/oakline/upkeep/internal/schedule"
	"github.com/oakline/upkeep/internal/store"
	"github.com/oakline/upkeep/internal/triage"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Upkeep API server",
		Long:  "Runs the intake API, approval endpoints, push stream, and scheduled jobs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "upkeep.yaml", "path to Upkeep config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured listen port")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, st, err := storeFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.HTTP.Port
	}

	registry := notify.NewRegistry()
	dispatcher, err := buildDispatcher(cfg, st, registry)
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

	approvals, err := approval.NewService(approval.ServiceOpts{
		Secret:     cfg.Approval.Secret,
		Store:      st,
		Dispatcher: dispatcher,
		BaseURL:    cfg.Org.BaseURL,
	})
	if err != nil {
		return err
	}

	manager, err := triage.NewManager(triage.ManagerOpts{
		Client:     client,
		Store:      st,
		Matcher:    matching.NewEngine(matching.EngineOpts{Completion: client}),
		Dispatcher: dispatcher,
		OrgID:      cfg.Org.ID,
	})
	if err != nil {
		return err
	}

	scheduler, err := schedule.New(schedule.Opts{
		Store:        st,
		Dispatcher:   dispatcher,
		Sweeper:      manager,
		OrgID:        cfg.Org.ID,
		BaseURL:      cfg.Org.BaseURL,
		ReminderSpec: cfg.Schedule.ApprovalReminder,
		DigestSpec:   cfg.Schedule.UnassignedDigest,
		MaxIdle:      24 * time.Hour,
	})
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return httpapi.Start(ctx, httpapi.StartOpts{
		Triage:     manager,
		Approvals:  approvals,
		Dispatcher: dispatcher,
		Registry:   registry,
		Port:       port,
		Out:        cmd.OutOrStdout(),
	})
}

// buildDispatcher assembles the notification fan-out from the configured
// channels. Unconfigured channels stay nil and degrade to logged no-ops.
func buildDispatcher(cfg *config.Config, st *store.Store, registry *notify.Registry) (*notify.Dispatcher, error) {
	var ops []notify.OpsSender
	if cfg.OpsChat.SlackToken != "" {
		slack, err := opschat.NewSlack(opschat.SlackOpts{
			Token:     cfg.OpsChat.SlackToken,
			ChannelID: cfg.OpsChat.SlackChannel,
		})
		if err != nil {
			return nil, err
		}
		ops = append(ops, slack)
	}
	if cfg.OpsChat.DiscordToken != "" {
		discord, err := opschat.NewDiscord(opschat.DiscordOpts{
			Token:     cfg.OpsChat.DiscordToken,
			ChannelID: cfg.OpsChat.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		ops = append(ops, discord)
	}

	opts := notify.DispatcherOpts{
		Registry: registry,
		Ops:      ops,
		Parties:  st,
		Recorder: st,
	}
	// Typed nils must not reach the interface fields.
	if gw := email.New(cfg.Email); gw != nil {
		opts.Email = gw
	}
	if gw := sms.New(cfg.SMS); gw != nil {
		opts.SMS = gw
	}
	return notify.NewDispatcher(opts)
}
