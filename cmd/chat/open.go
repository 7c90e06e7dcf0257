package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/consertja/consertja/internal/chat"
	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/realtime"
	"github.com/consertja/consertja/internal/session"
)

var log = logger.New("cli")

func newOpenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "open <counterpartID>",
		Short: "Open a conversation; typed lines are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.session.Current().Authenticated() {
				return errNotLoggedIn
			}
			return runConversation(ctx, a, args[0], os.Stdin, os.Stdout)
		},
	}
}

func runConversation(ctx context.Context, a *app, counterpartID string, in io.Reader, out io.Writer) error {
	broker := realtime.NewBroker()
	var changes chat.ChangeFeed = broker
	dsn, _ := a.cfg.DSN()
	if err := realtime.Start(ctx, broker, a.cfg.FeedOptions(dsn)); err != nil {
		log.Warn("Change feed unavailable, polling only: %v", err)
		changes = nil
	}

	svc := chat.NewService(a.db, changes, chat.WithPollInterval(a.cfg.PollInterval))
	return converse(ctx, svc, a.db, a.session, counterpartID, in, out)
}

type nameLookup interface {
	CounterpartNames(ctx context.Context, role models.Role, ids []string) (map[string]string, error)
}

// converse runs one conversation view until the input ends, "exit" or
// "/sair" is typed, or ctx is done
func converse(ctx context.Context, svc *chat.Service, names nameLookup, sess *session.Context, counterpartID string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	counter := svc.NewUnreadCounter(sess)

	// Resolves and caches the role when the stored session lacks it
	if _, err := counter.Refresh(ctx); err != nil {
		return err
	}
	self := sess.Current()

	feed, err := svc.OpenFeed(self, counterpartID, svc.NewReadSync(counter))
	if err != nil {
		return err
	}

	name := counterpartID
	if found, err := names.CounterpartNames(ctx, self.Role.Counterpart(), []string{counterpartID}); err == nil && found[counterpartID] != "" {
		name = found[counterpartID]
	}

	v := newView(out, self, name)
	v.header()
	feed.OnUpdate(v.messages)
	counter.OnChange(v.unread)
	v.unread(counter.Count())

	if changes := svc.Changes(); changes != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Run(ctx, changes)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		feed.Run(ctx)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "exit", "/sair":
				return nil
			}
			if _, err := feed.Send(ctx, line); err != nil {
				v.failed(err)
			}
		}
	}
}

// view prints a conversation to a terminal. Every message is printed once,
// in the order the feed delivers it.
type view struct {
	mu      sync.Mutex
	out     io.Writer
	self    models.Session
	name    string
	printed map[int64]bool
	badge   int

	mine   func(a ...interface{}) string
	theirs func(a ...interface{}) string
	dim    func(a ...interface{}) string
	alert  func(a ...interface{}) string
}

func newView(out io.Writer, self models.Session, name string) *view {
	return &view{
		out:     out,
		self:    self,
		name:    name,
		printed: make(map[int64]bool),
		badge:   -1,
		mine:    color.New(color.FgCyan, color.Bold).SprintFunc(),
		theirs:  color.New(color.FgGreen, color.Bold).SprintFunc(),
		dim:     color.New(color.FgHiBlack).SprintFunc(),
		alert:   color.New(color.FgRed).SprintFunc(),
	}
}

func (v *view) header() {
	fmt.Fprintf(v.out, "Conversa com %s. Digite a mensagem e Enter para enviar, \"/sair\" para sair.\n", v.theirs(v.name))
}

func (v *view) messages(msgs []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, m := range msgs {
		if v.printed[m.ID] {
			continue
		}
		v.printed[m.ID] = true

		who := v.theirs(v.name)
		if m.SentBy == v.self.Role {
			who = v.mine("Você")
		}
		text := m.Text
		if text == "" {
			text = v.dim("[anexo]")
		}
		fmt.Fprintf(v.out, "%s %s: %s\n", v.dim(m.SentAt.Local().Format("15:04")), who, text)
	}
}

func (v *view) unread(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if n == v.badge {
		return
	}
	v.badge = n
	fmt.Fprintln(v.out, v.dim(fmt.Sprintf("(%d não lidas)", n)))
}

func (v *view) failed(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case errors.Is(err, chat.ErrSendFailed):
		fmt.Fprintln(v.out, v.alert("Mensagem não enviada, tente novamente"))
	default:
		fmt.Fprintln(v.out, v.alert(err.Error()))
	}
}
