package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bahdotsh/wrkflw/pkg/model"
)

// ActionResolutionErrorKind classifies a failure to resolve a `uses:`
// reference into a runnable action.
type ActionResolutionErrorKind string

const (
	ErrKindNotFound                 ActionResolutionErrorKind = "NotFound"
	ErrKindUnreadableActionManifest ActionResolutionErrorKind = "UnreadableActionManifest"
	ErrKindCompositeCycle           ActionResolutionErrorKind = "CompositeCycle"
	ErrKindUnsupportedKindInRuntime ActionResolutionErrorKind = "UnsupportedKindInRuntime"
	ErrKindMissingInput             ActionResolutionErrorKind = "MissingInput"
)

// ActionResolutionError is fatal to the step and propagates to the job
type ActionResolutionError struct {
	Kind   ActionResolutionErrorKind
	Uses   string
	Detail string
}

func (e *ActionResolutionError) Error() string {
	return fmt.Sprintf("%s: action %q: %s", e.Kind, e.Uses, e.Detail)
}

func newActionResolutionError(kind ActionResolutionErrorKind, uses, format string, args ...interface{}) *ActionResolutionError {
	return &ActionResolutionError{Kind: kind, Uses: uses, Detail: fmt.Sprintf(format, args...)}
}

// remoteAction is a parsed owner/repo[/subpath]@ref reference
type remoteAction struct {
	URL  string
	Org  string
	Repo string
	Path string
	Ref  string
}

func (ra *remoteAction) CloneURL() string {
	return fmt.Sprintf("https://%s/%s/%s", ra.URL, ra.Org, ra.Repo)
}

// IsCheckout identifies the native-checkout builtin
func (ra *remoteAction) IsCheckout() bool {
	return ra.Org == "actions" && ra.Repo == "checkout"
}

func newRemoteAction(action string) *remoteAction {
	// <owner>/<repo>[/<subpath>]@<ref>
	atIdx := strings.LastIndex(action, "@")
	if atIdx == -1 {
		return nil
	}
	ref := action[atIdx+1:]
	parts := strings.Split(action[:atIdx], "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" || ref == "" {
		return nil
	}
	return &remoteAction{
		URL:  "github.com",
		Org:  parts[0],
		Repo: parts[1],
		Path: strings.Join(parts[2:], "/"),
		Ref:  ref,
	}
}

// readActionManifest loads action.yml (or action.yaml) from a host dir
func readActionManifest(uses string, actionDir string) (*model.Action, error) {
	for _, name := range []string{"action.yml", "action.yaml"} {
		manifest := filepath.Join(actionDir, name)
		f, err := os.Open(manifest)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, newActionResolutionError(ErrKindUnreadableActionManifest, uses, "cannot open %s: %v", manifest, err)
		}
		defer f.Close()
		action, err := model.ReadAction(f)
		if err != nil {
			return nil, newActionResolutionError(ErrKindUnreadableActionManifest, uses, "cannot parse %s: %v", manifest, err)
		}
		return action, nil
	}
	return nil, newActionResolutionError(ErrKindNotFound, uses, "no action.yml or action.yaml in %s", actionDir)
}

// setupActionInputs applies declared defaults and enforces required
// inputs. Inputs arrive as INPUT_ env vars, upper-cased with hyphens
// replaced by underscores.
func setupActionInputs(ctx context.Context, rc *RunContext, step step, action *model.Action) error {
	stepModel := step.getStepModel()
	env := step.getEnv()

	for name, input := range action.Inputs {
		envKey := fmt.Sprintf("INPUT_%s", strings.ReplaceAll(strings.ToUpper(name), "-", "_"))
		if _, ok := (*env)[envKey]; ok {
			continue
		}
		if input.Default != "" {
			interpolated, err := rc.NewStepExpressionEvaluator(ctx, step).Interpolate(input.Default)
			if err != nil {
				interpolated = input.Default
			}
			(*env)[envKey] = interpolated
			continue
		}
		if input.Required {
			return newActionResolutionError(ErrKindMissingInput, stepModel.Uses, "required input %q was not supplied", name)
		}
	}
	return nil
}

// actionKindSupported verifies the resolved kind can run under the
// active runtime.
func actionKindSupported(rc *RunContext, uses string, using model.ActionRunsUsing) error {
	if rc.Config.HostMode && using == model.ActionRunsUsingDocker {
		return newActionResolutionError(ErrKindUnsupportedKindInRuntime, uses, "docker actions are not supported in emulation mode")
	}
	return nil
}

// nodeImageFor maps runs.using node versions to the container image
// JavaScript actions execute in.
func nodeImageFor(using model.ActionRunsUsing) string {
	switch using {
	case model.ActionRunsUsingNode12:
		return "node:12-buster-slim"
	case model.ActionRunsUsingNode16:
		return "node:16-bullseye-slim"
	default:
		return "node:20-bookworm-slim"
	}
}
