package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ashureev/lanne/internal/client"
	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/healthsvc"
	"github.com/spf13/cobra"
)

const (
	defaultServerURL = "http://localhost:8000"
	defaultGRPCAddr  = "localhost:50051"
)

var errPipeline = errors.New("orchestrator reported an error")

type rootOptions struct {
	server    string
	userID    string
	sessionID string
	timeout   time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, client.WithIdentity(o.userID, o.sessionID))
}

func (o *rootOptions) context(parent context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(parent, o.timeout)
	}
	return context.WithCancel(parent)
}

func newRootCmd(envServer string) *cobra.Command {
	opts := &rootOptions{}
	if envServer == "" {
		envServer = defaultServerURL
	}

	root := &cobra.Command{
		Use:           "lanne",
		Short:         "Lanne - Linux assistant client",
		Long:          "Ask the Lanne orchestrator questions about a Debian system and inspect its plans and history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envServer, "Orchestrator base URL (env LANNE_URL)")
	root.PersistentFlags().StringVar(&opts.userID, "user", "", "User id sent with requests")
	root.PersistentFlags().StringVar(&opts.sessionID, "session", "", "Session id sent with requests")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Request timeout")

	root.AddCommand(
		newAskCommand(opts),
		newPlanCommand(opts),
		newHistoryCommand(opts),
		newHealthCommand(opts),
	)
	return root
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			return ask(ctx, opts.client(), strings.Join(args, " "), raw, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&raw, "json", false, "Print raw stream events, one JSON object per line")
	return cmd
}

func ask(ctx context.Context, c *client.Client, text string, raw bool, out, status io.Writer) error {
	enc := json.NewEncoder(out)
	for ev, err := range c.Stream(ctx, text) {
		if err != nil {
			return err
		}
		if raw {
			if err := enc.Encode(ev); err != nil {
				return err
			}
			continue
		}
		switch ev.Type {
		case domain.EventStatus:
			fmt.Fprintln(status, "..", ev.Message)
		case domain.EventPlan:
			fmt.Fprintln(status, "..", describePlan(*ev.Plan))
		case domain.EventFinalResponse:
			fmt.Fprintln(out, ev.Response.Response)
			if len(ev.Response.Sources) > 0 {
				fmt.Fprintln(status, "fontes:", strings.Join(ev.Response.Sources, ", "))
			}
		case domain.EventError:
			return fmt.Errorf("%w: %s", errPipeline, ev.Message)
		}
	}
	return nil
}

func describePlan(p domain.ExecutionPlan) string {
	var parts []string
	if p.UseAction {
		parts = append(parts, "acao("+strings.Join(p.ActionCommands, ",")+")")
	}
	if p.UseKnowledge {
		parts = append(parts, "conhecimento")
	}
	if p.UseWeb {
		parts = append(parts, "web")
	}
	if len(parts) == 0 {
		parts = append(parts, "nenhuma fonte")
	}
	return fmt.Sprintf("plano: %s [%s]", strings.Join(parts, " + "), p.ResponseStyle)
}

func newPlanCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [question]",
		Short: "Show the classification and plan without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			res, err := opts.client().Plan(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent exchanges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			records, err := opts.client().History(ctx, limit)
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Max entries to show (1-100)")
	return cmd
}

func renderHistory(w io.Writer, records []client.ExchangeRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No exchanges recorded yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tINTENT\tLATENCY\tSOURCES\tQUERY")
	for _, r := range records {
		sources := strings.Join(r.Sources, ",")
		if sources == "" {
			sources = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Intent, r.LatencyMs, sources, oneLine(r.Query, 60))
	}
	return tw.Flush()
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	var grpcAddr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the HTTP service and its gRPC health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()

			info, err := opts.client().Info(ctx)
			if err != nil {
				return fmt.Errorf("http: %w", err)
			}
			fmt.Fprintf(out, "http: %s %s (%s) inference=%s action=%s\n",
				info.Service, info.Status, info.Version, info.Inference, info.ActionAgent)

			if grpcAddr == "" {
				return nil
			}
			probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
			defer probeCancel()
			status, err := healthsvc.Probe(probeCtx, grpcAddr, healthsvc.ServiceName)
			if err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			fmt.Fprintf(out, "grpc: %s %s\n", healthsvc.ServiceName, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&grpcAddr, "grpc", defaultGRPCAddr, "gRPC health address (empty skips the probe)")
	return cmd
}
