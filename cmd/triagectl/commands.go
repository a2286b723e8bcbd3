package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medtriage/internal/ai"
	"medtriage/internal/api"
	"medtriage/internal/app"
	"medtriage/internal/models"
	"medtriage/internal/store"
	"medtriage/internal/tools"
)

var (
	assessFile string
	auditLimit int
	probeLimit int
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run one triage assessment and print the result",
	Long: `Reads a request such as
  {"symptoms": ["chest pain"], "vitals": {"bp": 180}, "age_years": 60, "sex": "male"}
from --file or stdin, runs it through the configured path and prints the result JSON.`,
	Args: cobra.NoArgs,
	RunE: runAssess,
}

var checkModelsCmd = &cobra.Command{
	Use:   "check-models [model ids...]",
	Short: "Find which Bedrock models answer a minimal Converse call",
	RunE:  runCheckModels,
}

var checkDBCmd = &cobra.Command{
	Use:   "check-db",
	Short: "Connect to the configured Postgres instance and run SELECT 1",
	Args:  cobra.NoArgs,
	RunE:  runCheckDB,
}

var agentSchemaCmd = &cobra.Command{
	Use:   "agent-schema",
	Short: "Print the action-group function schema for " + tools.SubmitTriageResultName,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), tools.SubmitTriageResult().AgentFunction())
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent assessments from the audit log",
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

func runAssess(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if assessFile != "" {
		f, err := os.Open(assessFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	req, err := readRequest(in)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var audit api.AuditRecorder
	if components.Audit != nil {
		audit = components.Audit
	}
	result, err := api.NewTriageService(components.Assessor, audit, logger).Assess(ctx, req)
	if err != nil {
		return fmt.Errorf("triage assessment failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func readRequest(r io.Reader) (*models.TriageRequest, error) {
	var req models.TriageRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func runCheckModels(cmd *cobra.Command, args []string) error {
	ids := args
	if len(ids) == 0 {
		ids = ai.CandidateBedrockModels
	}

	region := ai.DefaultBedrockRegion
	if cfg, err := loadConfig(); err == nil {
		region = cfg.Model.Region
	} else {
		logger.Debug("Using default region", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	candidates, err := ai.NewBedrockModels(ctx, region, ids, 0)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checking Bedrock models in %s...\n\n", region)
	results := ai.ProbeModels(ctx, candidates, probeLimit)
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(out, "  ✓ %s\n      -> %s\n\n", r.ModelID, r.Reply)
			continue
		}
		fmt.Fprintf(out, "  ✗ %s\n      -> %s\n\n", r.ModelID, truncate(r.Err.Error(), 80))
	}

	best := ai.FirstWorking(results)
	if best == "" {
		return errors.New("no models worked; check IAM permissions and model access")
	}

	fmt.Fprintln(out, "Working models (use best first):")
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(out, "  %s\n", r.ModelID)
		}
	}
	fmt.Fprintf(out, "\nRecommended for BEDROCK_MODEL_ID:\n  %s\n", best)
	return nil
}

func runCheckDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := store.NewHealthChecker(cfg.Database, cfg.Model.Region)
	if err := checker.Check(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "db connected: %s\n", store.SafeDSNSummary(cfg.Database))
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Audit.Path == "" {
		return errors.New("audit log not configured (set AUDIT_DB_PATH or audit.path)")
	}

	ctx := cmd.Context()
	log, err := store.OpenAuditLog(ctx, cfg.Audit.Path)
	if err != nil {
		return err
	}
	defer log.Close()

	entries, err := log.Recent(ctx, auditLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPATH\tSEVERITY\tCONFIDENCE\tFORCED\tDURATION\tFALLBACK")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Path, e.Severity, e.Confidence,
			e.ForceHighPriority, e.Duration, e.FallbackReason)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
