package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/mail-relay/internal/config"
	"github.com/jmehdipour/mail-relay/internal/inbound"
	"github.com/jmehdipour/mail-relay/internal/notion"
	"github.com/jmehdipour/mail-relay/internal/router"
	"github.com/jmehdipour/mail-relay/internal/schedule"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dry-run the pure parts of the relay",
	}
	cmd.AddCommand(newInspectPayloadCmd(), newInspectWeekCmd(), newInspectDateCmd())
	return cmd
}

func newInspectPayloadCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "payload <file>",
		Short: "Normalize a saved webhook body and show where it would be routed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var payload inbound.Payload
			if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
				return fmt.Errorf("%s: not a JSON object", args[0])
			}

			headers := http.Header{}
			if to != "" {
				headers.Set("X-Original-To", to)
			}
			env, err := inbound.NewNormalizer().Normalize(payload, headers)
			if err != nil {
				return err
			}

			rt, err := inspectRouter()
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"provider": env.Provider,
				"envelope": env,
				"pipeline": rt.Route(env),
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient to use when the payload has none")
	return cmd
}

func newInspectWeekCmd() *cobra.Command {
	var (
		at     string
		lookup bool
	)
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the publication week a newsletter item would be linked to",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}

			if !lookup {
				return printJSON(cmd, schedule.NewWeekLinker(nil, "").Target(now))
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client := notion.NewClient(notion.Options{
				BaseURL:    cfg.Notion.BaseURL,
				Token:      cfg.Notion.Token,
				MaxRetries: cfg.Notion.MaxRetries,
			})
			finder := notion.NewRecords(client, notion.Databases{Weeks: cfg.Notion.Databases.Weeks}).Weeks()
			ref, err := schedule.NewWeekLinker(finder, cfg.Notion.WeekTitle).ResolveContainer(cmd.Context(), now)
			if err != nil {
				return err
			}
			return printJSON(cmd, ref)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference instant (RFC 3339), default now")
	cmd.Flags().BoolVar(&lookup, "lookup", false, "look the container up in Notion")
	return cmd
}

func newInspectDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "date <start> [time] [end] [endTime]",
		Short: "Compose the date range stored for an event",
		Args:  cobra.RangeArgs(1, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]string, 4)
			copy(parts, args)
			return printJSON(cmd, schedule.Compose(parts[0], parts[1], parts[2], parts[3]))
		},
	}
}

// inspectRouter uses the configured rules when a config loads, the defaults
// otherwise.
func inspectRouter() (*router.Router, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return router.New(nil)
	}
	rules, err := cfg.RouterRules()
	if err != nil {
		return nil, err
	}
	return router.New(rules)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

