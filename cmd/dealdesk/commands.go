package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/pipeline"
	"github.com/boddenberg/dealdesk-bfa/internal/report"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

var (
	flagAsOf       string
	flagJSON       bool
	flagReason     string
	flagNotes      string
	flagCloseValue string
	flagClosedAt   string
	flagTokenSub   string
	flagTokenTTL   time.Duration
)

var agingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Print the invoice aging report",
	Args:  cobra.NoArgs,
	RunE:  runAging,
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Print the deal board",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

var transitionCmd = &cobra.Command{
	Use:   "transition <deal-id> <stage>",
	Short: "Move a deal to another stage",
	Long:  "Move a deal to another stage. Marking a deal lost requires --reason.",
	Args:  cobra.ExactArgs(2),
	RunE:  runTransition,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token signed with SESSION_JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	agingCmd.Flags().StringVar(&flagAsOf, "as-of", "", "evaluation date, YYYY-MM-DD (default today)")
	for _, c := range []*cobra.Command{agingCmd, pipelineCmd, transitionCmd} {
		c.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of tables")
	}
	transitionCmd.Flags().StringVar(&flagReason, "reason", "", "loss reason")
	transitionCmd.Flags().StringVar(&flagNotes, "notes", "", "free-text notes")
	transitionCmd.Flags().StringVar(&flagCloseValue, "close-value", "", "final deal value when marking won, e.g. 4500.00")
	transitionCmd.Flags().StringVar(&flagClosedAt, "closed-at", "", "close date, YYYY-MM-DD")
	tokenCmd.Flags().StringVar(&flagTokenSub, "sub", "operator", "token subject")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", time.Hour, "token lifetime")

	rootCmd.AddCommand(agingCmd, pipelineCmd, transitionCmd, tokenCmd)
}

func commandContext(a *app) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.HTTPTimeout*time.Duration(a.cfg.MaxRetries+2))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAging(_ *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var asOf domain.Date
	if flagAsOf != "" {
		if asOf, err = domain.ParseDate(flagAsOf); err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
	}

	ctx, cancel := commandContext(a)
	defer cancel()

	rep, err := a.collections.Aging(ctx, asOf)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(rep)
	}
	fmt.Print(report.NewRenderer(a.presentation).Aging(rep))
	return nil
}

func runPipeline(_ *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(a)
	defer cancel()

	cols, err := a.pipeline.Board(ctx)
	if err != nil {
		return err
	}
	view := pipeline.BuildView(cols, a.presentation.StageLabel)
	if flagJSON {
		return printJSON(view)
	}
	fmt.Print(report.NewRenderer(a.presentation).Board(view))
	return nil
}

func runTransition(_ *cobra.Command, args []string) error {
	cfg, logger := loadConfig()
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	target, ok := domain.ParseStage(args[1])
	if !ok {
		return fmt.Errorf("unknown stage %q", args[1])
	}

	opts := domain.TransitionOptions{Reason: flagReason, Notes: flagNotes}
	if flagCloseValue != "" {
		v := domain.ParseMoney(flagCloseValue)
		opts.CloseValue = &v
	}
	if flagClosedAt != "" {
		d, err := domain.ParseDate(flagClosedAt)
		if err != nil {
			return fmt.Errorf("--closed-at: %w", err)
		}
		t := d.Time()
		opts.ClosedAt = &t
	}

	ctx, cancel := commandContext(a)
	defer cancel()

	deal, err := a.pipeline.Transition(ctx, args[0], target, opts)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(deal)
	}
	fmt.Print(report.NewRenderer(a.presentation).Deal(deal))
	return nil
}

func runToken(_ *cobra.Command, _ []string) error {
	cfg, _ := loadConfig()
	verifier := service.NewSessionVerifier(cfg.SessionJWTSecret)
	if verifier == nil {
		return fmt.Errorf("SESSION_JWT_SECRET is not set")
	}
	token, err := verifier.Sign(flagTokenSub, cfg.TenantID, flagTokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
