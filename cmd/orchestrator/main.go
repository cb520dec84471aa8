// Command orchestrator is the informative CLI surface of spec §6:
// list-agents, validate, schedule, status, cancel. It is a thin shell over
// the core library — every invariant it enforces lives in workflow,
// engine, scheduler, ledger, and registry; this file only wires
// collaborators and maps xerrors.Kind to the documented exit codes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goflow/orchestrator/registry"
	"github.com/goflow/orchestrator/run"
	"github.com/goflow/orchestrator/workflow"
	"github.com/goflow/orchestrator/xerrors"
)

// Exit codes per spec §6.
const (
	exitSuccess            = 0
	exitUsage              = 1
	exitValidationFailure  = 2
	exitInsufficientBudget = 3
	exitExecutionFailure   = 4
	exitCancellation       = 5
)

func main() {
	os.Exit(dispatch())
}

// dispatch parses the subcommand and returns the process exit code.
func dispatch() int {
	if len(os.Args) < 2 {
		usage()
		return exitUsage
	}

	cfg := loadConfig()
	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitUsage
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "list-agents":
		return cmdListAgents(ctx, a, os.Args[2:])
	case "validate":
		return cmdValidate(ctx, a, os.Args[2:])
	case "schedule":
		return cmdSchedule(ctx, a, os.Args[2:])
	case "status":
		return cmdStatus(a, os.Args[2:])
	case "cancel":
		return cmdCancel(a, os.Args[2:])
	default:
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: orchestrator <list-agents|validate|schedule|status|cancel> [args]")
}

func cmdListAgents(ctx context.Context, a *app, args []string) int {
	fs := flag.NewFlagSet("list-agents", flag.ContinueOnError)
	category := fs.String("category", "", "filter by category")
	status := fs.String("status", "", "filter by lifecycle status")
	chain := fs.String("chain", "", "filter by supported chain")
	token := fs.String("token", "", "filter by supported token")
	owner := fs.String("owner", "", "filter by owner user id")
	tag := fs.String("tag", "", "comma-separated tags (any-of)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	filter := registry.Filter{}
	if *category != "" {
		c := registry.Category(*category)
		filter.Category = &c
	}
	if *status != "" {
		s := registry.Status(*status)
		filter.Status = &s
	}
	if *chain != "" {
		filter.Chain = chain
	}
	if *token != "" {
		filter.Token = token
	}
	if *owner != "" {
		filter.OwnerID = owner
	}
	if *tag != "" {
		filter.Tags = splitCSV(*tag)
	}

	descriptors, err := a.registry.List(ctx, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitForError(err)
	}

	for _, d := range descriptors {
		fmt.Printf("%s\t%s\t%s\t%s\n", d.Reference, d.Name, d.Category, d.Status)
	}
	return exitSuccess
}

func cmdValidate(ctx context.Context, a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: orchestrator validate <workflow-doc>")
		return exitUsage
	}

	spec, err := loadWorkflowDoc(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitValidationFailure
	}

	if errs := workflow.Validate(spec, a.registry); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "validation:", e)
		}
		return exitValidationFailure
	}

	fmt.Println("ok")
	return exitSuccess
}

func cmdSchedule(ctx context.Context, a *app, args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	wallet := fs.String("wallet", "", "wallet address to reserve budget from")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 2 || *wallet == "" {
		fmt.Fprintln(os.Stderr, "usage: orchestrator schedule --wallet <addr> <workflow-doc> <inputs.json>")
		return exitUsage
	}

	spec, err := loadWorkflowDoc(rest[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitValidationFailure
	}

	if errs := workflow.Validate(spec, a.registry); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "validation:", e)
		}
		return exitValidationFailure
	}

	inputs, err := loadInputs(rest[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitValidationFailure
	}

	r, err := a.scheduler.Schedule(schedulerMeta(spec), *wallet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitForError(err)
	}

	if err := a.scheduler.Transition(r.ID, run.StatusRunning, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitForError(err)
	}

	a.engine.Execute(ctx, spec, a.scheduler, r.ID, inputs)

	return printRunResult(a, r.ID)
}

func cmdStatus(a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: orchestrator status <runId>")
		return exitUsage
	}
	return printRunResult(a, args[0])
}

func cmdCancel(a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: orchestrator cancel <runId>")
		return exitUsage
	}
	if err := a.scheduler.Cancel(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		return exitForError(err)
	}
	return printRunResult(a, args[0])
}

func printRunResult(a *app, runID string) int {
	r, ok := a.scheduler.Get(runID)
	if !ok {
		fmt.Fprintln(os.Stderr, "orchestrator: no such run", runID)
		return exitUsage
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)

	switch r.Status {
	case run.StatusCompleted:
		return exitSuccess
	case run.StatusFailed:
		return exitExecutionFailure
	case run.StatusCancelled:
		return exitCancellation
	default:
		return exitSuccess
	}
}

func loadInputs(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inputs map[string]any
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// exitForError maps an xerrors.Kind to the documented exit code.
func exitForError(err error) int {
	switch {
	case xerrors.Is(err, xerrors.KindValidation):
		return exitValidationFailure
	case xerrors.Is(err, xerrors.KindInsufficientBudget):
		return exitInsufficientBudget
	case xerrors.Is(err, xerrors.KindAgentNotFound):
		return exitValidationFailure
	case xerrors.Is(err, xerrors.KindPayment), xerrors.Is(err, xerrors.KindExecution):
		return exitExecutionFailure
	case xerrors.Is(err, xerrors.KindState):
		return exitUsage
	default:
		return exitUsage
	}
}
