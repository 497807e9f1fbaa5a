// cmd/apply.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/docstore"
	"github.com/xkilldash9x/formpilot/internal/engine"
	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/planner"
)

func newApplyCommand() *cobra.Command {
	var (
		task    string
		formSel string
		submit  bool
		plan    bool
	)

	cmd := &cobra.Command{
		Use:   "apply [job-url]",
		Short: "Open a job posting and complete its application form.",
		Long: `Opens the job posting, completes the application form from your reference
documents, and pauses for your input whenever a question cannot be answered,
the page demands human verification, or the application is about to be
submitted. Submission never happens without your confirmation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), args[0], task, formSel, submit, plan)
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task description handed to the planner")
	cmd.Flags().StringVar(&formSel, "form", "", "CSS selector of the application form (auto-detected when empty)")
	cmd.Flags().BoolVar(&submit, "submit", false, "proceed to submission (still pauses for confirmation)")
	cmd.Flags().BoolVar(&plan, "plan", false, "let the configured planner decide the steps")
	return cmd
}

func runApply(ctx context.Context, jobURL, task, formSel string, submit, plan bool) error {
	cfg := appConfig
	logger := observability.GetLogger()

	store := docstore.NewStore(cfg.Docs, logger)
	if err := store.Load(); err != nil {
		logger.Warn("Reference documents unavailable; factual questions will need manual answers.", zap.Error(err))
		store = nil
	}

	var recorder engine.Recorder
	if cfg.Ledger.DSN != "" {
		led, err := ledger.New(ctx, cfg.Ledger.DSN, logger)
		if err != nil {
			logger.Warn("Step ledger unavailable; continuing without persistence.", zap.Error(err))
		} else {
			recorder = led
			defer led.Close()
		}
	}

	mgr := browser.NewManager(cfg, logger)
	eng := engine.New(cfg, mgr, store, recorder, logger)
	operator := bufio.NewScanner(os.Stdin)

	if err := runIntent(ctx, eng, operator, schemas.Intent{Type: schemas.IntentNavigate, Value: jobURL}); err != nil {
		return err
	}

	if plan && cfg.Planner.APIKey != "" {
		if err := runPlanned(ctx, eng, operator, cfg, task, jobURL, logger); err != nil {
			return err
		}
	} else {
		sel := formSel
		if sel == "" {
			sel = "form"
		}
		if err := runIntent(ctx, eng, operator, schemas.Intent{Type: schemas.IntentCompleteForm, Value: sel}); err != nil {
			return err
		}
		if submit {
			if err := runIntent(ctx, eng, operator, schemas.Intent{Type: schemas.IntentSubmit}); err != nil {
				return err
			}
		}
	}

	// The session stays alive on purpose: closing it would throw away the
	// operator's authentication state.
	fmt.Println("Done. The browser session is left open; run with a close instruction to tear it down.")
	return nil
}

// runPlanned lets the planner decide the steps, one observation at a time.
func runPlanned(ctx context.Context, eng *engine.Engine, operator *bufio.Scanner, cfg *config.Config, task, jobURL string, logger *zap.Logger) error {
	p, err := planner.NewGeminiPlanner(ctx, cfg.Planner, logger)
	if err != nil {
		return err
	}
	if task == "" {
		task = "Complete the job application at " + jobURL
	}

	const maxPlanningRounds = 20
	for round := 0; round < maxPlanningRounds; round++ {
		obs, err := eng.Snapshot(ctx)
		if err != nil {
			return err
		}
		intents, err := p.PlanIntents(ctx, task, obs)
		if err != nil {
			return err
		}
		if len(intents) == 0 {
			return nil
		}
		for _, intent := range intents {
			if err := runIntent(ctx, eng, operator, intent); err != nil {
				return err
			}
			if intent.Type == schemas.IntentSubmit {
				return nil
			}
		}
	}
	return fmt.Errorf("planner did not converge within %d rounds", maxPlanningRounds)
}

// runIntent executes one intent, resolving suspensions interactively until
// the intent completes or fails.
func runIntent(ctx context.Context, eng *engine.Engine, operator *bufio.Scanner, intent schemas.Intent) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := eng.Execute(ctx, intent)

		switch outcome.Status {
		case schemas.OutcomeCompleted:
			return nil

		case schemas.OutcomeNeedsInput:
			fmt.Printf("\nQuestion: %s\n> ", outcome.Prompt)
			answer, ok := readLine(operator)
			if !ok {
				return fmt.Errorf("operator input closed while a question was pending")
			}
			if err := eng.AnswerQuestion(strings.ToLower(outcome.Prompt), answer); err != nil {
				return err
			}

		case schemas.OutcomeNeedsIntervention:
			fmt.Printf("\nYour turn on the page: %s\nPress Enter when finished.\n", outcome.Reason)
			if _, ok := readLine(operator); !ok {
				return fmt.Errorf("operator input closed during intervention")
			}
			if err := eng.ResumeIntervention(); err != nil {
				return err
			}

		case schemas.OutcomeNeedsConfirmation:
			fmt.Print("\nReady to submit the application. Submit now? [y/N] ")
			answer, _ := readLine(operator)
			if strings.EqualFold(strings.TrimSpace(answer), "y") {
				if err := eng.ConfirmSubmit(); err != nil {
					return err
				}
				continue
			}
			if err := eng.DeclineSubmit(); err != nil {
				return err
			}
			fmt.Println("Submission declined; the application is filled but not sent.")
			return nil

		case schemas.OutcomeFailed:
			return outcome.Err

		default:
			return fmt.Errorf("unexpected outcome %q", outcome.Status)
		}
	}
}

func readLine(operator *bufio.Scanner) (string, bool) {
	if !operator.Scan() {
		return "", false
	}
	return operator.Text(), true
}
