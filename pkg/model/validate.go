package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rhysd/actionlint"
	"gopkg.in/yaml.v3"
)

// Severity of a validation problem
type Severity int

const (
	// SeverityWarning is surfaced but does not abort execution
	SeverityWarning Severity = iota

	// SeverityError aborts execution before any job is dispatched
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Problem is one finding of the static validator
type Problem struct {
	Severity Severity
	Location string
	Message  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s: %s", p.Location, p.Severity, p.Message)
}

// HasErrors reports whether any problem is fatal
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the static checks against a parsed workflow. When src
// is non-nil it is additionally passed through the actionlint parser so
// schema-level mistakes are reported with their position before our
// semantic checks run.
func Validate(w *Workflow, src []byte) []Problem {
	problems := make([]Problem, 0)

	if src != nil {
		_, errs := actionlint.Parse(src)
		for _, err := range errs {
			problems = append(problems, Problem{
				Severity: SeverityError,
				Location: fmt.Sprintf("%s:%d:%d", w.File, err.Line, err.Column),
				Message:  err.Message,
			})
		}
	}

	if len(w.Jobs) == 0 {
		problems = append(problems, Problem{
			Severity: SeverityError,
			Location: w.File,
			Message:  "workflow has no jobs",
		})
		return problems
	}

	jobIDs := w.GetJobIDs()
	sort.Strings(jobIDs)

	for _, jobID := range jobIDs {
		job := w.Jobs[jobID]
		loc := fmt.Sprintf("%s: job %s", w.File, jobID)

		switch job.Type() {
		case JobTypeInvalid:
			if job.Uses != "" {
				problems = append(problems, Problem{SeverityError, loc, "job must not have both 'steps' and 'uses'"})
			} else {
				problems = append(problems, Problem{SeverityError, loc, "job must have either 'steps' or 'uses'"})
			}
		case JobTypeReusableWorkflow:
			problems = append(problems, validateReusableCall(job, loc)...)
		}

		for _, need := range job.Needs() {
			if w.GetJob(need) == nil {
				problems = append(problems, Problem{
					Severity: SeverityError,
					Location: loc,
					Message:  fmt.Sprintf("job references unknown job %q in 'needs'", need),
				})
			}
		}

		problems = append(problems, validateSteps(job, loc)...)
		problems = append(problems, validateMatrix(job, loc)...)
	}

	if cycle := findNeedsCycle(w); cycle != nil {
		problems = append(problems, Problem{
			Severity: SeverityError,
			Location: w.File,
			Message:  fmt.Sprintf("the 'needs' graph contains a cycle: %s", strings.Join(cycle, " -> ")),
		})
	}

	return problems
}

func validateSteps(job *Job, loc string) []Problem {
	problems := make([]Problem, 0)
	for i, step := range job.Steps {
		stepLoc := fmt.Sprintf("%s step %d", loc, i+1)
		if step.Run != "" && step.Uses != "" {
			problems = append(problems, Problem{SeverityError, stepLoc, "step must not have both 'run' and 'uses'"})
		}
		if step.Run == "" && step.Uses == "" {
			problems = append(problems, Problem{SeverityError, stepLoc, "step must have either 'run' or 'uses'"})
		}
		if len(step.With) > 0 && step.Uses == "" {
			problems = append(problems, Problem{SeverityError, stepLoc, "'with' is only permitted together with 'uses'"})
		}
	}
	return problems
}

func validateMatrix(job *Job, loc string) []Problem {
	if job.Strategy == nil {
		return nil
	}
	problems := make([]Problem, 0)
	def, err := decodeMatrix(job.Strategy.RawMatrix)
	if err != nil {
		return append(problems, Problem{SeverityError, loc, err.Error()})
	}
	if def == nil {
		return nil
	}
	for _, e := range def.excludes {
		for k := range e {
			if _, ok := def.axes[k]; !ok {
				problems = append(problems, Problem{
					Severity: SeverityError,
					Location: loc,
					Message:  fmt.Sprintf("matrix exclude key %q does not match any key within the matrix", k),
				})
			}
		}
	}
	for _, axis := range def.axisNames {
		for _, v := range def.axes[axis] {
			switch v.(type) {
			case string, bool, int, int64, float64, map[string]interface{}:
			default:
				problems = append(problems, Problem{
					Severity: SeverityError,
					Location: loc,
					Message:  fmt.Sprintf("matrix axis %q contains a value that is neither a scalar nor a mapping", axis),
				})
			}
		}
	}
	return problems
}

// validateReusableCall checks `with:` keys of a reusable workflow call
// against the declared inputs of the callee, when the callee is a local
// file we can read. Anything unresolvable degrades to a warning.
func validateReusableCall(job *Job, loc string) []Problem {
	problems := make([]Problem, 0)
	inputs, ok := workflowCallInputs(job.Uses)
	if !ok {
		if len(job.With) > 0 {
			problems = append(problems, Problem{
				Severity: SeverityWarning,
				Location: loc,
				Message:  fmt.Sprintf("cannot resolve inputs of reusable workflow %q; 'with' keys are unchecked", job.Uses),
			})
		}
		return problems
	}
	for k := range job.With {
		if _, declared := inputs[k]; !declared {
			problems = append(problems, Problem{
				Severity: SeverityWarning,
				Location: loc,
				Message:  fmt.Sprintf("reusable workflow %q does not declare input %q", job.Uses, k),
			})
		}
	}
	return problems
}

// workflowCallInputs reads `on.workflow_call.inputs` of a local
// reusable workflow reference (`./.github/workflows/x.yml`).
func workflowCallInputs(uses string) (map[string]WorkflowDispatchInput, bool) {
	if !strings.HasPrefix(uses, "./") {
		return nil, false
	}
	f, err := os.Open(filepath.Clean(uses))
	if err != nil {
		return nil, false
	}
	defer f.Close()
	callee, err := ReadWorkflow(f)
	if err != nil {
		return nil, false
	}
	if callee.RawOn.Kind != yaml.MappingNode {
		return nil, false
	}
	var val map[string]struct {
		Inputs map[string]WorkflowDispatchInput `yaml:"inputs"`
	}
	if err := callee.RawOn.Decode(&val); err != nil {
		return nil, false
	}
	call, ok := val["workflow_call"]
	if !ok {
		return nil, false
	}
	return call.Inputs, true
}

// findNeedsCycle runs a depth-first visit over the needs graph with
// grey/black colouring. It returns the first cycle found as the list of
// job ids along it, or nil.
func findNeedsCycle(w *Workflow) []string {
	const (
		white = iota
		grey
		black
	)
	colour := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colour[id] = grey
		stack = append(stack, id)
		job := w.GetJob(id)
		if job != nil {
			for _, need := range job.Needs() {
				if w.GetJob(need) == nil {
					continue // reported separately as an unknown reference
				}
				switch colour[need] {
				case grey:
					// slice the stack from the first occurrence of need
					for i, v := range stack {
						if v == need {
							cycle = append(append([]string{}, stack[i:]...), need)
							return true
						}
					}
				case white:
					if visit(need) {
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[id] = black
		return false
	}

	ids := w.GetJobIDs()
	sort.Strings(ids)
	for _, id := range ids {
		if colour[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}
