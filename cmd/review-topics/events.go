package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/review-topics/internal/bus"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List or replay events from the event log",
		Long: `Read the event log configured under bus.event_log.

With --replay the selected events are published again on the configured
bus, for example to feed a Kafka consumer that missed a run.`,
		RunE: runEvents,
	}

	cmd.Flags().Duration("since", 24*time.Hour, "only events newer than this")
	cmd.Flags().Int("limit", 50, "maximum number of events to list (0 = all)")
	cmd.Flags().Bool("replay", false, "publish the events on the configured bus")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	cfg, log, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Bus.EventLog == "" {
		return fmt.Errorf("no event log configured (set bus.event_log or TOPICS_EVENT_LOG)")
	}
	sinceFlag, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")
	replay, _ := cmd.Flags().GetBool("replay")
	since := time.Now().Add(-sinceFlag)

	events, err := bus.NewEventLogger(cfg.Bus.EventLog)
	if err != nil {
		return err
	}
	defer events.Close()

	if replay {
		// Publish without logging again.
		busCfg := cfg.Bus
		busCfg.EventLog = ""
		target, err := bus.NewBus(busCfg, log)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer target.Close()

		n, err := events.Replay(cmd.Context(), target, since)
		if err != nil {
			return err
		}
		log.Info("Events replayed", "count", n, "bus", busCfg.Type)
		return nil
	}

	logged, err := events.Events(since, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(logged)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOPIC\tSOURCE\tCORRELATION\tID")
	for _, e := range logged {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339),
			e.Topic,
			e.Event.Source,
			e.Event.CorrelationID,
			e.Event.ID,
		)
	}
	return tw.Flush()
}
