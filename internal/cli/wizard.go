package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/surveyforge/internal/adapters/cli"
	"github.com/example/surveyforge/internal/app"
	"github.com/example/surveyforge/internal/config"
	"github.com/example/surveyforge/internal/ports/primary"
	"github.com/example/surveyforge/internal/ports/secondary"
	"github.com/example/surveyforge/internal/wire"
)

// WizardCmd returns the wizard command group
func WizardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Run the survey creation wizard",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Create a survey step by step with autosave",
		RunE: func(cmd *cobra.Command, args []string) error {
			session := newWizardSession(
				wire.DraftStore(),
				wire.Scope(),
				wire.Config(),
				os.Stdin,
				os.Stdout,
			)
			return session.Run(cmd.Context())
		},
	})

	return cmd
}

// errQuit signals a clean user exit from the step loop.
var errQuit = errors.New("quit")

// Step data is keyed by 1-based step number, matching the stored draft.
const (
	stepDetails   = 1
	stepQuestions = 2
	stepSettings  = 3
	stepReview    = 4
)

// wizardSession wires the autosave scheduler, recovery manager, and step
// machine into one interactive terminal session.
type wizardSession struct {
	store secondary.DraftStore
	scope secondary.OwnerScope
	cfg   *config.Config

	in  *bufio.Scanner
	out io.Writer

	autosave *app.AutosaveServiceImpl
	wizard   *app.WizardServiceImpl
	recovery *app.RecoveryServiceImpl

	status   *cliadapter.StatusAdapter
	progress *cliadapter.WizardAdapter
	banner   *cliadapter.RecoveryAdapter

	// data holds the accumulated step answers keyed by 1-based step.
	data map[int]json.RawMessage
}

func newWizardSession(store secondary.DraftStore, scope secondary.OwnerScope, cfg *config.Config, in io.Reader, out io.Writer) *wizardSession {
	s := &wizardSession{
		store: store,
		scope: scope,
		cfg:   cfg,
		in:    bufio.NewScanner(in),
		out:   out,
		data:  make(map[int]json.RawMessage),
	}

	s.autosave = app.NewAutosaveService(app.AutosaveConfig{
		Store:          store,
		Scope:          scope,
		Debounce:       cfg.Debounce(),
		RequestTimeout: cfg.RequestTimeout(),
	})
	s.status = cliadapter.NewStatusAdapter(s.autosave, out)

	wizardSvc, err := app.NewWizardService(app.WizardConfig{
		Steps:    s.steps(),
		Autosave: s.autosave,
		OnValidationFailed: func(step int, reason string) {
			s.progress.ValidationFailed(step, reason)
		},
	})
	if err != nil {
		// Static step list; construction cannot fail at runtime.
		panic(err)
	}
	s.wizard = wizardSvc
	s.progress = cliadapter.NewWizardAdapter(wizardSvc, out)

	s.recovery = app.NewRecoveryService(app.RecoveryConfig{
		Store:         store,
		Scope:         scope,
		MaxAge:        cfg.MaxAge(),
		ExpiryWarning: cfg.ExpiryWarning(),
		OnRecover:     s.applyRecoveredDraft,
	})
	s.banner = cliadapter.NewRecoveryAdapter(s.recovery, out)

	return s
}

// Run drives the session: recovery prompt first, then the step loop.
func (s *wizardSession) Run(ctx context.Context) error {
	defer s.autosave.Close(context.Background())

	state, err := s.banner.ShowBanner(ctx)
	if err != nil {
		return err
	}
	if state.ShowBanner {
		if err := s.promptRecovery(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}

	for {
		wizardState := s.wizard.State()
		if wizardState.Completed {
			return nil
		}

		s.progress.ShowProgress()
		s.progress.ShowStep()

		done, err := s.runStep(ctx, wizardState.CurrentStep+1)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// promptRecovery asks the user what to do with the offered draft.
// Exhausted input leaves the draft untouched and ends the session.
func (s *wizardSession) promptRecovery(ctx context.Context) error {
	for {
		choice, ok := s.prompt("> ")
		if !ok {
			return errQuit
		}
		switch strings.ToLower(choice) {
		case "r", "resume":
			if _, err := s.banner.Resume(ctx); err != nil {
				return err
			}
			return nil
		case "d", "discard":
			return s.banner.Discard(ctx)
		case "s", "start", "":
			s.banner.StartFresh()
			return nil
		default:
			fmt.Fprintln(s.out, "Please answer r, d, or s.")
		}
	}
}

// applyRecoveredDraft loads a recovered draft back into the session.
func (s *wizardSession) applyRecoveredDraft(d *primary.Draft) {
	s.data = make(map[int]json.RawMessage, len(d.StepData))
	for step, raw := range d.StepData {
		s.data[step] = raw
	}
	s.autosave.AdoptDraft(d)

	completed := make([]int, 0, d.CurrentStep-1)
	for i := 0; i < d.CurrentStep-1; i++ {
		completed = append(completed, i)
	}
	if err := s.wizard.Restore(d.CurrentStep-1, completed); err != nil {
		fmt.Fprintf(s.out, "Could not restore step position: %v\n", err)
	}
}

// runStep collects input for one step, then navigates. Returns true when
// the wizard finished.
func (s *wizardSession) runStep(ctx context.Context, step int) (bool, error) {
	switch step {
	case stepDetails:
		s.collectDetails()
	case stepQuestions:
		s.collectQuestions()
	case stepSettings:
		s.collectSettings()
	case stepReview:
		return s.reviewAndFinish(ctx)
	}

	return false, s.navigate(ctx)
}

func (s *wizardSession) collectDetails() {
	existing := struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}{}
	if raw, ok := s.data[stepDetails]; ok {
		json.Unmarshal(raw, &existing)
	}

	title := s.promptDefault("Survey title", existing.Title)
	description := s.promptDefault("Description (optional)", existing.Description)

	s.setStepData(stepDetails, map[string]string{
		"title":       title,
		"description": description,
	})
}

func (s *wizardSession) collectQuestions() {
	var questions []string
	if raw, ok := s.data[stepQuestions]; ok {
		json.Unmarshal(raw, &questions)
	}

	if len(questions) > 0 {
		fmt.Fprintf(s.out, "Current questions: %s\n", strings.Join(questions, "; "))
	}
	fmt.Fprintln(s.out, "Enter questions one per line. Blank line when done.")

	var entered []string
	for {
		q, ok := s.prompt("? ")
		if !ok || q == "" {
			break
		}
		entered = append(entered, q)
		s.setStepData(stepQuestions, append(append([]string{}, questions...), entered...))
	}
	if len(entered) > 0 {
		questions = append(questions, entered...)
	}
	s.setStepData(stepQuestions, questions)
}

func (s *wizardSession) collectSettings() {
	anonymous := strings.HasPrefix(strings.ToLower(s.promptDefault("Anonymous responses? (y/n)", "y")), "y")
	multiple := strings.HasPrefix(strings.ToLower(s.promptDefault("Allow multiple submissions? (y/n)", "n")), "y")

	s.setStepData(stepSettings, map[string]bool{
		"anonymous":          anonymous,
		"allow_resubmission": multiple,
	})
}

// reviewAndFinish shows the draft summary and completes on confirmation.
func (s *wizardSession) reviewAndFinish(ctx context.Context) (bool, error) {
	s.showSummary()

	for {
		input, ok := s.prompt("[submit/back/quit] > ")
		if !ok {
			return true, s.quit(ctx)
		}
		switch strings.ToLower(input) {
		case "submit", "yes", "y":
			s.setStepData(stepReview, map[string]bool{"confirmed": true})
			done, err := s.progress.Finish(ctx)
			if err != nil {
				return false, err
			}
			if done {
				return true, nil
			}
			// Validation failed; fall back to the loop so the user can
			// fix earlier steps.
			return false, s.navigate(ctx)
		case "back", "b":
			s.progress.Previous(ctx)
			return false, nil
		case "quit", "q":
			return true, s.quit(ctx)
		default:
			fmt.Fprintln(s.out, "Please answer submit, back, or quit.")
		}
	}
}

func (s *wizardSession) showSummary() {
	details := struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}{}
	if raw, ok := s.data[stepDetails]; ok {
		json.Unmarshal(raw, &details)
	}
	var questions []string
	if raw, ok := s.data[stepQuestions]; ok {
		json.Unmarshal(raw, &questions)
	}

	fmt.Fprintf(s.out, "Title:     %s\n", details.Title)
	if details.Description != "" {
		fmt.Fprintf(s.out, "About:     %s\n", details.Description)
	}
	fmt.Fprintf(s.out, "Questions: %d\n", len(questions))
	for i, q := range questions {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, q)
	}
	fmt.Fprintln(s.out)
}

// navigate handles the post-step navigation prompt.
func (s *wizardSession) navigate(ctx context.Context) error {
	for {
		fmt.Fprintf(s.out, "\n[%s]\n", s.status.StatusLine())
		input, ok := s.prompt("[next/back/goto N/save/quit] > ")
		if !ok {
			if err := s.quit(ctx); err != nil {
				return err
			}
			return errQuit
		}
		choice := strings.ToLower(input)

		if conflictHandled, err := s.maybeResolveConflict(ctx, choice); conflictHandled || err != nil {
			return err
		}

		switch {
		case choice == "next" || choice == "n" || choice == "":
			s.progress.Next(ctx)
			return nil
		case choice == "back" || choice == "b":
			s.progress.Previous(ctx)
			return nil
		case strings.HasPrefix(choice, "goto "):
			target, err := strconv.Atoi(strings.TrimPrefix(choice, "goto "))
			if err != nil {
				fmt.Fprintln(s.out, "goto needs a step number.")
				continue
			}
			if s.progress.Jump(ctx, target) {
				return nil
			}
		case choice == "save" || choice == "s":
			if err := s.autosave.Flush(ctx); err != nil {
				fmt.Fprintf(s.out, "Save failed: %v\n", err)
			}
			s.status.Show()
		case choice == "retry":
			if err := s.autosave.Retry(ctx); err != nil {
				fmt.Fprintf(s.out, "Retry failed: %v\n", err)
			}
		case choice == "status":
			s.status.Show()
		case choice == "quit" || choice == "q":
			if err := s.quit(ctx); err != nil {
				return err
			}
			return errQuit
		default:
			fmt.Fprintln(s.out, "Unknown command.")
		}
	}
}

// maybeResolveConflict intercepts navigation input while a version
// conflict is pending. Writes stay suspended until the user chooses.
func (s *wizardSession) maybeResolveConflict(ctx context.Context, choice string) (bool, error) {
	if s.autosave.Status().State != primary.StateConflict {
		return false, nil
	}

	s.status.ShowConflict()
	switch choice {
	case "k", "keep":
		if err := s.autosave.ResolveKeepMine(ctx); err != nil {
			fmt.Fprintf(s.out, "Could not keep your copy: %v\n", err)
		}
	case "t", "take":
		theirs, err := s.autosave.ResolveTakeTheirs()
		if err != nil {
			fmt.Fprintf(s.out, "Could not take their copy: %v\n", err)
			return true, nil
		}
		s.applyRecoveredDraft(theirs)
		fmt.Fprintln(s.out, "Loaded the other session's copy.")
	}
	return true, nil
}

// quit flushes unsaved state before leaving.
func (s *wizardSession) quit(ctx context.Context) error {
	if err := s.autosave.Close(ctx); err != nil {
		fmt.Fprintf(s.out, "Final save failed: %v\n", err)
		fmt.Fprintln(s.out, "Your latest edits may not be stored.")
	} else {
		fmt.Fprintln(s.out, "Draft saved. Resume any time with: surveyforge wizard run")
	}
	return nil
}

// setStepData records an answer and schedules an autosave.
func (s *wizardSession) setStepData(step int, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		fmt.Fprintf(s.out, "Could not record step %d: %v\n", step, err)
		return
	}
	s.data[step] = raw

	s.autosave.Save(primary.DraftPayload{
		CurrentStep: s.wizard.State().CurrentStep + 1,
		StepData:    s.snapshotData(),
	})
}

// snapshotData copies the answer map so in-flight writes never observe
// later edits.
func (s *wizardSession) snapshotData() map[int]json.RawMessage {
	snapshot := make(map[int]json.RawMessage, len(s.data))
	for step, raw := range s.data {
		snapshot[step] = raw
	}
	return snapshot
}

// steps defines the survey creation flow. Validators read the session's
// accumulated answers; they run only when the user tries to leave a step.
func (s *wizardSession) steps() []primary.WizardStep {
	return []primary.WizardStep{
		{
			ID:          "details",
			Title:       "Survey Details",
			Description: "Name your survey and describe its purpose.",
			Validate: func(ctx context.Context) (bool, string, error) {
				details := struct {
					Title string `json:"title"`
				}{}
				if raw, ok := s.data[stepDetails]; ok {
					if err := json.Unmarshal(raw, &details); err != nil {
						return false, "", err
					}
				}
				if strings.TrimSpace(details.Title) == "" {
					return false, "give the survey a title", nil
				}
				return true, "", nil
			},
		},
		{
			ID:          "questions",
			Title:       "Questions",
			Description: "Add the questions respondents will answer.",
			Validate: func(ctx context.Context) (bool, string, error) {
				var questions []string
				if raw, ok := s.data[stepQuestions]; ok {
					if err := json.Unmarshal(raw, &questions); err != nil {
						return false, "", err
					}
				}
				if len(questions) == 0 {
					return false, "add at least one question", nil
				}
				return true, "", nil
			},
		},
		{
			ID:          "settings",
			Title:       "Settings",
			Description: "Choose how responses are collected.",
			Validate: func(ctx context.Context) (bool, string, error) {
				if _, ok := s.data[stepSettings]; !ok {
					return false, "choose the response settings", nil
				}
				return true, "", nil
			},
		},
		{
			ID:          "review",
			Title:       "Review",
			Description: "Check everything before creating the survey.",
			Validate: func(ctx context.Context) (bool, string, error) {
				confirm := struct {
					Confirmed bool `json:"confirmed"`
				}{}
				if raw, ok := s.data[stepReview]; ok {
					if err := json.Unmarshal(raw, &confirm); err != nil {
						return false, "", err
					}
				}
				if !confirm.Confirmed {
					return false, "confirm the summary before submitting", nil
				}
				return true, "", nil
			},
		},
	}
}

// prompt reads one line of input. ok is false once input is exhausted;
// every prompt loop must stop rather than re-prompt on that.
func (s *wizardSession) prompt(label string) (line string, ok bool) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// promptDefault reads one line, keeping the default on blank input.
func (s *wizardSession) promptDefault(label, def string) string {
	if def != "" {
		fmt.Fprintf(s.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(s.out, "%s: ", label)
	}
	if !s.in.Scan() {
		return def
	}
	text := strings.TrimSpace(s.in.Text())
	if text == "" {
		return def
	}
	return text
}
