package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/alfredjeanlab/flowstudio/internal/coordinator"
	"github.com/alfredjeanlab/flowstudio/internal/events"
	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /new            start a new session
  /switch <id>    switch to another session
  /delete         delete the active session
  /sessions       list sessions
  /design         disconnect and return to design mode
  /chat           (re)compile if needed and enter chat
  /quit           leave
Anything else is sent as a message.`

var chatCmd = &cobra.Command{
	Use:     "chat",
	Short:   "Chat with the workflow interactively",
	GroupID: "chat",
	Long: `Chat with the workflow interactively.

On a studio server the graph (--graph, or the default User -> agent workflow)
is compiled first and a single connection is opened. On a sessions server the
last active session is resumed, or the first listed one.

` + chatHelp,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		graphPath, _ := cmd.Flags().GetString("graph")
		ed := graph.DefaultWorkflow()
		if graphPath != "" {
			var err error
			if ed, err = graph.Load(graphPath); err != nil {
				return err
			}
		}

		pub := openPublisher()
		defer pub.Close()

		c := coordinator.New(studioClient, coordinator.Options{
			Flavor:    cfg.Flavor,
			BaseURL:   cfg.URL,
			Header:    authHeader(cfg),
			Memory:    cfg.Store().SessionMemory(cfg.URL),
			Graph:     ed,
			Publisher: pub,
			Logger:    logger,
		})
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s := newChatSession(c, cmd.OutOrStdout(), cmd.ErrOrStderr())
		defer s.unsubscribe()
		s.prompt = ui.IsTerminal(cmd.InOrStdin())
		s.report(s.start(ctx))
		s.run(ctx, cmd.InOrStdin())
		return nil
	},
}

func init() {
	chatCmd.Flags().String("graph", "", "graph file to compile (studio flavor)")
}

// openPublisher connects to NATS when configured. A broken bus only costs
// the fan-out, so failures fall back to the no-op publisher.
func openPublisher() events.Publisher {
	if cfg.NATSURL == "" {
		return &events.NoopPublisher{}
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		logger.Warn("event publishing disabled", "nats_url", cfg.NATSURL, "err", err)
		return &events.NoopPublisher{}
	}
	return pub
}

// chatSession drives a coordinator from lines of text and prints the log as
// it grows.
type chatSession struct {
	c           *coordinator.Coordinator
	unsubscribe func()

	mu     sync.Mutex // serializes writes to out
	out    io.Writer
	errOut io.Writer
	prompt bool // print "> " before each line
}

func newChatSession(c *coordinator.Coordinator, out, errOut io.Writer) *chatSession {
	s := &chatSession{c: c, out: out, errOut: errOut}
	s.unsubscribe = c.Subscribe(s.print)
	return s
}

func (s *chatSession) print(ch coordinator.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch.Reset {
		title := "design"
		switch {
		case ch.State.ActiveSession != "":
			title = "session " + ch.State.ActiveSession
		case ch.State.Mode == coordinator.ModeChat:
			title = "chat"
		}
		fmt.Fprintln(s.out, ui.RenderAccent("── "+title+" ──"))
	}
	for _, e := range ch.Appended {
		fmt.Fprintln(s.out, ui.FormatEntry(e))
	}
}

func (s *chatSession) start(ctx context.Context) error {
	if s.c.Flavor() == protocol.FlavorStudio {
		return s.c.CompileRequested(ctx)
	}
	return s.c.Initialize(ctx)
}

// report prints err unless the coordinator already logged it.
func (s *chatSession) report(err error) {
	if err == nil || coordinator.Reported(err) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.errOut, ui.RenderError("error: ")+err.Error())
}

func (s *chatSession) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, text)
}

// run reads lines until EOF, /quit, or ctx is done.
func (s *chatSession) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	for {
		s.showPrompt()
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := s.handle(ctx, line)
			s.report(err)
			if quit {
				return
			}
		}
	}
}

// handle runs one input line and reports whether the loop should end.
func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, s.c.MessageSubmitted(line)
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		s.println(chatHelp)
		return false, nil
	case "new":
		_, err := s.c.NewSession(ctx)
		return false, err
	case "switch":
		if arg == "" {
			return false, fmt.Errorf("usage: /switch <id>")
		}
		return false, s.c.SessionSelected(ctx, arg)
	case "delete":
		return false, s.c.DeleteActiveSession(ctx)
	case "sessions":
		if err := s.c.RefreshSessions(ctx); err != nil {
			return false, err
		}
		s.printSessions()
		return false, nil
	case "design":
		s.c.DesignRequested()
		return false, nil
	case "chat", "compile":
		if s.c.Flavor() == protocol.FlavorStudio {
			return false, s.c.CompileRequested(ctx)
		}
		return false, s.c.ChatRequested(ctx)
	}
	return false, fmt.Errorf("unknown command /%s (try /help)", name)
}

func (s *chatSession) showPrompt() {
	if !s.prompt {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, ui.RenderMuted("> "))
}

func (s *chatSession) printSessions() {
	st := s.c.State()
	if len(st.Sessions) == 0 {
		s.println(ui.RenderMuted("no sessions"))
		return
	}
	var b strings.Builder
	for i, id := range st.Sessions {
		if i > 0 {
			b.WriteByte('\n')
		}
		if id == st.ActiveSession {
			b.WriteString("* " + id)
		} else {
			b.WriteString("  " + id)
		}
	}
	s.println(b.String())
}
