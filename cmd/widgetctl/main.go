package main

import (
	"bufio"
	"chatwidget-gateway/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
)

const helpText = `Commands:
  /book <date-time>   check and book a slot (e.g. 2025-03-11T10:00)
  /open               show the booking form
  /duration <15|30|60>
  /name <name>  /email <email>  /company <company>
  /cancel             discard the booking draft
  /hubspot            print the CRM authorization link
  /end                end the conversation and forget the saved token
  /help               show this help
  exit                quit`

func main() {
	var rootCmd = &cobra.Command{
		Use:   "widgetctl",
		Short: "Chat with the website assistant from a terminal",
		Long:  "widgetctl talks to a running chat widget gateway and keeps the session token on disk so the conversation resumes across runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, _ := cmd.Flags().GetString("gateway")
			tokenFile, _ := cmd.Flags().GetString("token-file")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			fresh, _ := cmd.Flags().GetBool("new")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, newGatewayClient(gateway, timeout), tokenFile, fresh, os.Stdin, cmd.OutOrStdout())
		},
	}
	rootCmd.Flags().StringP("gateway", "g", "http://localhost:8080", "Base URL of the chat widget gateway")
	rootCmd.Flags().String("token-file", defaultTokenPath(), "File the session token is stored in")
	rootCmd.Flags().Duration("timeout", 2*time.Minute, "Timeout for a single request")
	rootCmd.Flags().Bool("new", false, "Ignore the saved session and start a new one")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(ctx context.Context, client *gatewayClient, tokenFile string, fresh bool, in io.Reader, out io.Writer) error {
	token := ""
	if !fresh {
		saved, err := loadToken(tokenFile)
		if err != nil {
			return fmt.Errorf("reading token file: %w", err)
		}
		token = saved
	}

	snap, err := client.start(ctx, token)
	if err != nil {
		return err
	}
	if err := saveToken(tokenFile, client.token); err != nil {
		fmt.Fprintf(out, "%s could not save session token: %v\n", yellow("warning:"), err)
	}

	fmt.Fprintln(out, boldGreen("Website assistant"))
	fmt.Fprintf(out, "%s\n\n", faint("session "+snap.SessionID.String()+"  (type /help for commands)"))
	seen := render(out, snap, 0)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, boldGreen("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "exit") {
			return nil
		}
		if line == "" {
			continue
		}
		if line == "/end" {
			if err := client.end(ctx); err != nil {
				fmt.Fprintf(out, "%s %v\n", red("error:"), err)
				continue
			}
			if err := os.Remove(tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(out, "%s could not remove session token: %v\n", yellow("warning:"), err)
			}
			fmt.Fprintln(out, faint("session ended"))
			return nil
		}

		next, err := dispatch(ctx, client, line, out)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("error:"), err)
			continue
		}
		if next != nil {
			seen = render(out, next, seen)
		}
	}
}

// dispatch runs one REPL line. A nil snapshot means nothing to render.
func dispatch(ctx context.Context, client *gatewayClient, line string, out io.Writer) (*models.Snapshot, error) {
	if !strings.HasPrefix(line, "/") {
		return client.send(ctx, line)
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Fprintln(out, helpText)
		return nil, nil
	case "/book":
		if arg == "" {
			return nil, errors.New("usage: /book <date-time>")
		}
		return client.submitBooking(ctx, arg)
	case "/open":
		return client.openBooking(ctx)
	case "/cancel":
		return client.cancelBooking(ctx)
	case "/duration":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, errors.New("usage: /duration <15|30|60>")
		}
		snap, err := client.updateBooking(ctx, models.UpdateBookingRequest{DurationMinutes: &n})
		if err == nil {
			fmt.Fprintln(out, faint(fmt.Sprintf("duration set to %d minutes", n)))
		}
		return snap, err
	case "/name", "/email", "/company":
		req := models.UpdateBookingRequest{}
		switch cmd {
		case "/name":
			req.Name = &arg
		case "/email":
			req.Email = &arg
		default:
			req.Company = &arg
		}
		snap, err := client.updateBooking(ctx, req)
		if err == nil {
			fmt.Fprintln(out, faint("saved"))
		}
		return snap, err
	case "/hubspot":
		url, err := client.hubspotAuth(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Open %s to connect HubSpot\n", boldCyan(url))
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

// render prints messages from index seen onward and returns the new count.
func render(out io.Writer, snap *models.Snapshot, seen int) int {
	if seen > len(snap.Messages) {
		seen = 0
	}
	for _, m := range snap.Messages[seen:] {
		if m.Role == models.RoleUser {
			continue
		}
		fmt.Fprintf(out, "%s %s\n", boldCyan("Assistant:"), m.Content)
		switch m.RenderKind {
		case models.RenderPricing:
			if m.Pricing != nil {
				for _, opt := range m.Pricing.DurationOptions {
					fmt.Fprintf(out, "  - %s: $%.2f\n", opt.Duration, opt.Price)
				}
			}
		case models.RenderLink:
			fmt.Fprintf(out, "  %s\n", boldCyan(m.Link))
		case models.RenderBookingPicker:
			fmt.Fprintln(out, faint("  reply with /book <date-time> to pick a slot"))
		}
	}
	if len(snap.Suggestions) > 0 {
		fmt.Fprintf(out, "%s %s\n", faint("Suggestions:"), strings.Join(snap.Suggestions, " | "))
	}
	if snap.Booking.Open {
		fmt.Fprintln(out, faint(fmt.Sprintf("Booking form open (%d min)", snap.Booking.DurationMinutes)))
	}
	fmt.Fprintln(out)
	return len(snap.Messages)
}
