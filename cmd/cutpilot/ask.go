package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cutpilot/cutpilot-agent/internal/agent"
	"github.com/cutpilot/cutpilot-agent/internal/review"
)

var (
	askDecision string
	askNewChat  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run one chat message against the timeline",
	Long: `Run one chat message through the pipeline and print the reply.

When the reply starts a silence review, --decide walks every range with the
same decision; without it the review is printed and left open.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDecision, "decide", "", "Decision for every reviewed range (confirm or skip)")
	askCmd.Flags().BoolVar(&askNewChat, "new-chat", false, "Start a new inference session first")
}

func runAsk(cmd *cobra.Command, args []string) error {
	d := review.Decision(strings.ToLower(askDecision))
	if askDecision != "" && d != review.Confirm && d != review.Skip {
		return fmt.Errorf("invalid --decide %q: want confirm or skip", askDecision)
	}

	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if askNewChat {
		id, err := a.agent.ResetSession(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		a.logger.Info("new inference session", "session_id", id)
	}

	reply, err := a.agent.HandleMessage(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printReply(cmd, reply)
	if reply.Failed() {
		return fmt.Errorf("request failed: %s", reply.Error)
	}

	if reply.Review == nil || d == "" {
		return nil
	}
	return walkReview(ctx, cmd, a.agent, d)
}

func printReply(cmd *cobra.Command, r *agent.Reply) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, r.Text)
	if r.Summary != "" {
		fmt.Fprintln(out, r.Summary)
	}
	for _, c := range r.Commands {
		line := fmt.Sprintf("  #%d %s: %s", c.Index, c.Action, c.Status)
		if c.Error != "" {
			line += " (" + c.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
	if r.Review != nil {
		printReview(cmd, *r.Review)
	}
}

func printReview(cmd *cobra.Command, v agent.ReviewView) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, v.Progress)
	if v.Range != nil {
		fmt.Fprintf(out, "  %.3fs to %.3fs\n", v.Range.Start, v.Range.End)
	}
	if v.Warning != "" {
		fmt.Fprintln(out, "  warning:", v.Warning)
	}
}

func walkReview(ctx context.Context, cmd *cobra.Command, a *agent.Agent, d review.Decision) error {
	for {
		v, err := a.Review(ctx, d)
		if agent.IsNoReview(err) {
			return nil
		}
		if err != nil {
			return err
		}
		printReview(cmd, v)
		if v.Phase != review.PhaseReviewing {
			return nil
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
