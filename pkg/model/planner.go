package model

import (
	"fmt"
	"sort"
	"strings"
)

// Run represents a job from a workflow that needs to be run
type Run struct {
	Workflow *Workflow
	JobID    string
}

func (r *Run) String() string {
	job := r.Job()
	if job != nil && job.Name != "" {
		return job.Name
	}
	return r.JobID
}

// Job returns the job for this Run
func (r *Run) Job() *Job {
	return r.Workflow.GetJob(r.JobID)
}

// Stage contains a list of runs to execute in parallel
type Stage struct {
	Runs []*Run
}

// Plan contains a list of stages to run in series
type Plan struct {
	Stages []*Stage
}

// GetJobIDs returns the job ids of all runs in the stage
func (s *Stage) GetJobIDs() []string {
	ids := make([]string, 0, len(s.Runs))
	for _, r := range s.Runs {
		ids = append(ids, r.JobID)
	}
	return ids
}

// MaxRunNameLen returns the longest run name in the plan, used to align
// log prefixes.
func (p *Plan) MaxRunNameLen() int {
	maxRunNameLen := 0
	for _, stage := range p.Stages {
		for _, run := range stage.Runs {
			runNameLen := len(run.String())
			if runNameLen > maxRunNameLen {
				maxRunNameLen = runNameLen
			}
		}
	}
	return maxRunNameLen
}

// NewPlan builds an execution plan for the given job ids and their
// transitive dependencies. An empty id list plans the whole workflow.
func (w *Workflow) NewPlan(jobIDs ...string) (*Plan, error) {
	if len(jobIDs) == 0 {
		jobIDs = w.GetJobIDs()
	} else {
		var err error
		jobIDs, err = w.withTransitiveNeeds(jobIDs)
		if err != nil {
			return nil, err
		}
	}
	stages, err := createStages(w, jobIDs...)
	if err != nil {
		return nil, err
	}
	return &Plan{Stages: stages}, nil
}

func (w *Workflow) withTransitiveNeeds(jobIDs []string) ([]string, error) {
	seen := map[string]bool{}
	queue := append([]string{}, jobIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		job := w.GetJob(id)
		if job == nil {
			return nil, fmt.Errorf("workflow is not valid. job '%s' not found", id)
		}
		seen[id] = true
		queue = append(queue, job.Needs()...)
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// createStages partitions jobs into topological waves: every job of a
// stage has all its needs satisfied by earlier stages.
func createStages(w *Workflow, jobIDs ...string) ([]*Stage, error) {
	jobDependencies := make(map[string][]string)
	for _, jobID := range jobIDs {
		job := w.GetJob(jobID)
		if job == nil {
			return nil, fmt.Errorf("workflow is not valid. job '%s' not found", jobID)
		}
		jobDependencies[jobID] = job.Needs()
	}

	stages := make([]*Stage, 0)
	for len(jobDependencies) > 0 {
		stage := new(Stage)
		names := make([]string, 0, len(jobDependencies))
		for jobID, dependencies := range jobDependencies {
			if listInStages(dependencies, stages...) {
				names = append(names, jobID)
			}
		}
		if len(names) == 0 {
			remaining := make([]string, 0, len(jobDependencies))
			for jobID := range jobDependencies {
				remaining = append(remaining, jobID)
			}
			sort.Strings(remaining)
			return nil, fmt.Errorf("unable to build dependency graph for %s; cycle or unknown reference among: %s", w.Name, strings.Join(remaining, ", "))
		}
		sort.Strings(names)
		for _, name := range names {
			stage.Runs = append(stage.Runs, &Run{Workflow: w, JobID: name})
			delete(jobDependencies, name)
		}
		stages = append(stages, stage)
	}

	return stages, nil
}

// listInStages returns true iff all strings are present in at least one
// of the stages
func listInStages(list []string, stages ...*Stage) bool {
	for _, listString := range list {
		found := false
		for _, stage := range stages {
			for _, id := range stage.GetJobIDs() {
				if id == listString {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}
