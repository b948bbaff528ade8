package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Find stored faces that are too similar to each other",
	Long: `Load every stored encoding, registered and banned, and report pairs of
identities closer than the matching threshold.

Login accepts the first registered identity within the threshold, so two
similar identities mean the earlier one wins. Pairs that include a banned
identity mean the registered user can never log in.

Examples:
  face-gate audit
  face-gate audit --neighbors 5 --json`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Int("neighbors", constants.AuditNeighbors, "Nearest neighbours to inspect per identity")
	auditCmd.Flags().Bool("json", false, "Output as JSON")
}

// AuditPair is a pair of identities within the matching threshold.
type AuditPair struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Distance float64 `json:"distance"`
}

// AuditResult is the JSON output of the audit command.
type AuditResult struct {
	Identities int         `json:"identities"`
	Unreadable []string    `json:"unreadable"`
	Threshold  float64     `json:"threshold"`
	Pairs      []AuditPair `json:"pairs"`
}

const bannedPrefix = "banned:"

func runAudit(cmd *cobra.Command, args []string) error {
	neighbors := mustGetInt(cmd, "neighbors")
	jsonOutput := mustGetBool(cmd, "json")
	if neighbors < 1 {
		return errors.New("--neighbors must be at least 1")
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	active, err := a.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	banned, err := a.store.LoadBanned(ctx)
	if err != nil {
		return err
	}

	total := active.Len() + banned.Len()
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Loading encodings"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	cands := make([]facematch.Candidate, 0, total)
	cands = appendCandidates(ctx, a.store, cands, active, "", bar)
	cands = appendCandidates(ctx, a.store, cands, banned, bannedPrefix, bar)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	result := AuditResult{
		Identities: total,
		Unreadable: []string{},
		Threshold:  constants.ConfidenceThreshold,
		Pairs:      []AuditPair{},
	}
	for _, c := range cands {
		if c.Err != nil {
			result.Unreadable = append(result.Unreadable, c.Label)
			a.log.Warn("unreadable encoding", "label", c.Label, "error", c.Err)
		}
	}

	pairs, err := facematch.NearPairs(cands, neighbors, constants.ConfidenceThreshold)
	if err != nil {
		return fmt.Errorf("searching near pairs: %w", err)
	}
	for _, p := range pairs {
		result.Pairs = append(result.Pairs, AuditPair{A: p.A, B: p.B, Distance: p.Distance})
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Identities: %d (threshold %.2f)\n", result.Identities, result.Threshold)
	if len(result.Unreadable) > 0 {
		fmt.Printf("Unreadable encodings: %d\n", len(result.Unreadable))
		for _, l := range result.Unreadable {
			fmt.Printf("  - %s\n", l)
		}
	}
	if len(result.Pairs) == 0 {
		fmt.Println("No similar identities found.")
		return nil
	}
	fmt.Printf("Similar identities (%d):\n", len(result.Pairs))
	for _, p := range result.Pairs {
		fmt.Printf("  %-24s %-24s %.4f\n", p.A, p.B, p.Distance)
	}
	return nil
}

// appendCandidates loads the encodings of r in order, prefixing each label.
func appendCandidates[T store.Record](ctx context.Context, s store.EncodingReader, cands []facematch.Candidate,
	r *store.Registry[T], prefix string, bar *progressbar.ProgressBar) []facematch.Candidate {
	for _, c := range store.Candidates(ctx, s, r) {
		c.Label = prefix + c.Label
		cands = append(cands, c)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return cands
}
