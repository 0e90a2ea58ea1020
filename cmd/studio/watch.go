package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/flowstudio/internal/events"
	"github.com/alfredjeanlab/flowstudio/internal/presence"
	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow entries published by running chat clients",
	GroupID: "chat",
	Long: `Follow entries published by running chat clients over NATS.

Requires STUDIO_NATS_URL, the active remote's NATS URL, or --nats.

With --roster, entries are not printed; instead a table of active sessions
is shown every --interval and sessions that stop producing entries for
--quiet-after are reported as quiet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		var opts watchOptions
		opts.Session, _ = cmd.Flags().GetString("session")
		opts.State, _ = cmd.Flags().GetBool("state")
		opts.Roster, _ = cmd.Flags().GetBool("roster")
		opts.Interval, _ = cmd.Flags().GetDuration("interval")
		opts.QuietAfter, _ = cmd.Flags().GetDuration("quiet-after")
		if natsURL == "" {
			natsURL = cfg.NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL configured (set STUDIO_NATS_URL or pass --nats)")
		}

		sub, err := events.NewNATSSubscriber(natsURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return watchEvents(ctx, sub, opts, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS URL (overrides STUDIO_NATS_URL)")
	watchCmd.Flags().String("session", "", "only follow this session")
	watchCmd.Flags().Bool("state", false, "also print coordinator state changes")
	watchCmd.Flags().Bool("roster", false, "show a periodic table of active sessions instead of entries")
	watchCmd.Flags().Duration("interval", 10*time.Second, "roster refresh interval")
	watchCmd.Flags().Duration("quiet-after", 10*time.Minute, "idle time before a session is reported quiet")
}

type watchOptions struct {
	Session    string // only this session's entries
	State      bool   // print state changes
	Roster     bool
	Interval   time.Duration
	QuietAfter time.Duration
}

// watchEvents prints entry events, and optionally state events, until ctx
// is done or the subscription closes. In roster mode events feed a
// presence.Tracker that is printed on every tick.
func watchEvents(ctx context.Context, sub events.Subscriber, opts watchOptions, out io.Writer) error {
	topic := events.TopicAllEntries
	if opts.Session != "" {
		topic = events.EntryTopic(opts.Session)
	}
	entries, cancelEntries, err := sub.Subscribe(topic)
	if err != nil {
		return err
	}
	defer cancelEntries()

	var states <-chan []byte
	if opts.State || opts.Roster {
		ch, cancel, err := sub.Subscribe(events.TopicCoordinatorState)
		if err != nil {
			return err
		}
		defer cancel()
		states = ch
	}

	var (
		roster *presence.Tracker
		tick   <-chan time.Time
	)
	if opts.Roster {
		roster = presence.New()
		roster.StartReaper(&presence.ReaperConfig{
			QuietAfter:    opts.QuietAfter,
			SweepInterval: opts.Interval,
			OnQuiet: func(id string) {
				fmt.Fprintln(out, ui.RenderWarn("quiet: ")+id)
			},
		})
		defer roster.Stop()
		interval := opts.Interval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			printRoster(out, roster.Roster(0))
		case data, ok := <-entries:
			if !ok {
				return nil
			}
			ev, err := events.DecodeEntry(data)
			if err != nil {
				fmt.Fprintln(out, ui.RenderError("bad event: ")+err.Error())
				continue
			}
			if roster != nil {
				roster.RecordEntry(ev)
				continue
			}
			label := ev.SessionID
			if label == "" {
				label = events.DesignSession
			}
			fmt.Fprintf(out, "%s %s\n", ui.RenderMuted(label), ui.FormatEntry(ev.Entry))
		case data, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			st, err := events.DecodeState(data)
			if err != nil {
				fmt.Fprintln(out, ui.RenderError("bad event: ")+err.Error())
				continue
			}
			if roster != nil {
				roster.RecordState(st)
			}
			if opts.State {
				fmt.Fprintln(out, ui.RenderMuted(formatState(st)))
			}
		}
	}
}

func printRoster(out io.Writer, entries []presence.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, ui.RenderMuted("no active sessions"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMODE\tCONNECTION\tENTRIES\tLAST\tIDLE")
	for _, e := range entries {
		last := e.LastKind
		if e.LastSource != "" {
			last += " (" + e.LastSource + ")"
		}
		idle := (time.Duration(e.IdleSecs) * time.Second).String()
		if e.Quiet {
			idle += " quiet"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", e.SessionID, e.Mode, e.Connection, e.EntryCount, last, idle)
	}
	w.Flush()
}

func formatState(st events.StateChanged) string {
	input := "off"
	if st.InputEnabled {
		input = "on"
	}
	s := fmt.Sprintf("state: mode=%s connection=%s input=%s", st.Mode, st.Connection, input)
	if st.ActiveSession != "" {
		s += " session=" + st.ActiveSession
	}
	if st.LogReset {
		s += " (log reset)"
	}
	return s
}
