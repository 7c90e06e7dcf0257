package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/consertja/consertja/internal/auth"
	"github.com/consertja/consertja/internal/chat"
	"github.com/consertja/consertja/internal/directory"
	"github.com/consertja/consertja/internal/models"
)

func newLoginCmd(opts *options) *cobra.Command {
	var cpf, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with CPF and password and keep the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			in := bufio.NewScanner(os.Stdin)
			if cpf == "" {
				cpf = prompt(in, "CPF: ")
			}
			if password == "" {
				password = prompt(in, "Senha: ")
			}

			sess, err := auth.Authenticate(cmd.Context(), a.db, cpf, password)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidCredentials) {
					return fmt.Errorf("CPF ou senha inválidos")
				}
				return err
			}
			if err := a.session.Login(sess); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			fmt.Printf("Logado como %s (%s)\n", color.GreenString(sess.UserID), sess.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&cpf, "cpf", "", "CPF (prompted when empty)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Println("Sessão encerrada")
			return nil
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			current := a.session.Current()
			if !current.Authenticated() {
				return errNotLoggedIn
			}
			role := string(current.Role)
			if role == "" {
				role = "unknown"
			}
			fmt.Printf("%s (%s)\n", current.UserID, role)
			return nil
		},
	}
}

func newUnreadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the number of unread messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.session.Current().Authenticated() {
				return errNotLoggedIn
			}

			svc := chat.NewService(a.db, nil)
			count, err := svc.NewUnreadCounter(a.session).Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
}

func newChatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chats [query]",
		Short: "List conversations, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			current := a.session.Current()
			if !current.Authenticated() {
				return errNotLoggedIn
			}

			var query string
			if len(args) == 1 {
				query = args[0]
			}

			svc := chat.NewService(a.db, nil)
			summaries, err := svc.Summaries(cmd.Context(), current, query)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("Nenhuma conversa")
				return nil
			}

			printSummaries(summaries)
			return nil
		},
	}
}

func newProvidersCmd(opts *options) *cobra.Command {
	var sortFlag string

	cmd := &cobra.Command{
		Use:   "providers [query]",
		Short: "Search providers by name, service or city",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := directory.ParseSortOrder(sortFlag)
			if err != nil {
				return err
			}

			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			var query string
			if len(args) == 1 {
				query = args[0]
			}

			providers, err := directory.NewService(a.db).Search(cmd.Context(), query, order)
			if err != nil {
				return err
			}
			if len(providers) == 0 {
				fmt.Println("Nenhum prestador encontrado")
				return nil
			}

			printProviders(os.Stdout, providers)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortFlag, "sort", "", "order by rating: asc|desc")
	return cmd
}

func newReviewsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reviews [providerID]",
		Short: "Show a provider's reviews (your own when you are a provider)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			providerID := a.session.Current().UserID
			if len(args) == 1 {
				providerID = args[0]
			} else if a.session.Current().Role != models.RoleProvider {
				return fmt.Errorf("provider ID is required")
			}

			summary, err := directory.NewService(a.db).Reviews(cmd.Context(), providerID, limit)
			if err != nil {
				return err
			}

			printReviews(os.Stdout, summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "newest reviews to show, 0 for all")
	return cmd
}

func printProviders(w io.Writer, providers []models.Provider) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Nome", "Serviços", "Cidade", "Nota"})
	table.SetAutoWrapText(false)

	for _, p := range providers {
		services := strings.Join(p.Services, " • ")
		if services == "" {
			services = "Serviço não informado"
		}
		city := p.City
		if city == "" {
			city = "Cidade não informada"
		}
		table.Append([]string{p.ID, p.DisplayName(), services, city, strconv.FormatFloat(p.Rating, 'f', 1, 64)})
	}
	table.Render()
}

func printReviews(w io.Writer, summary models.RatingSummary) {
	fmt.Fprintf(w, "%s %.1f (%d avaliações)\n", color.YellowString("★"), summary.Average, summary.Count)
	for _, r := range summary.Reviews {
		fmt.Fprintf(w, "%s %s %s\n  %s\n",
			color.YellowString(strings.Repeat("★", r.Rating)),
			r.ClientName,
			r.CreatedAt.Local().Format("02/01/2006"),
			r.Comment)
	}
}

func printSummaries(summaries []models.ConversationSummary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Nome", "Última mensagem", "Quando", "Não lidas"})
	table.SetAutoWrapText(false)

	for _, s := range summaries {
		table.Append([]string{
			s.CounterpartID,
			s.CounterpartName,
			truncate(s.LastMessage, 40),
			s.LastAt.Local().Format("02/01 15:04"),
			strconv.Itoa(s.UnreadCount),
		})
	}
	table.Render()
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
