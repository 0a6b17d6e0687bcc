// Package build is the built-in build-and-test adapter. Execution is
// delegated to a Runner so deployments plug in their real toolchain; the
// default runner reports immediate success, which is what dry runs want.
package build

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/pkg/contract"
)

// Result is what a Runner reports back.
type Result struct {
	Passed bool
	Output string
}

// Runner executes a test or build invocation inside the workspace. It must
// honor ctx cancellation.
type Runner func(ctx context.Context, workspace, target string) (Result, error)

// defaultRunner succeeds instantly without touching the workspace.
func defaultRunner(ctx context.Context, workspace, target string) (Result, error) {
	return Result{Passed: true, Output: "ok"}, nil
}

// Adapter handles run-tests and build-project.
type Adapter struct {
	runTests     Runner
	buildProject Runner
	// defaultTimeout bounds invocations whose command carries none.
	defaultTimeout time.Duration
	logger         *logger.Logger
}

// New creates the build adapter with the default runners.
func New(defaultTimeout time.Duration, log *logger.Logger) *Adapter {
	if defaultTimeout <= 0 {
		defaultTimeout = time.Minute
	}
	return &Adapter{
		runTests:       defaultRunner,
		buildProject:   defaultRunner,
		defaultTimeout: defaultTimeout,
		logger:         log.WithFields(zap.String("component", "build-adapter")),
	}
}

// WithRunners replaces the test and build runners. Nil keeps the current
// runner.
func (a *Adapter) WithRunners(tests, build Runner) *Adapter {
	if tests != nil {
		a.runTests = tests
	}
	if build != nil {
		a.buildProject = build
	}
	return a
}

// CanHandle reports whether the command is a build intent.
func (a *Adapter) CanHandle(cmd *contract.Command) bool {
	return cmd.Kind == contract.CommandRunTests || cmd.Kind == contract.CommandBuildProject
}

// HandleCommand executes the command and emits exactly one completion.
func (a *Adapter) HandleCommand(cmd *contract.Command, state adapter.SessionState) {
	switch cmd.Kind {
	case contract.CommandRunTests:
		target := ""
		timeout := time.Duration(0)
		if cmd.RunTests != nil {
			target = cmd.RunTests.Selector
			timeout = cmd.RunTests.Timeout
		}
		a.run(cmd, state, a.runTests, target, timeout, contract.ArtifactTestResults, "test-results")
	case contract.CommandBuildProject:
		target := ""
		timeout := time.Duration(0)
		if cmd.BuildProject != nil {
			target = cmd.BuildProject.Target
			timeout = cmd.BuildProject.Timeout
		}
		a.run(cmd, state, a.buildProject, target, timeout, contract.ArtifactBuildLog, "build.log")
	default:
		adapter.CompleteFailure(state, cmd, "unsupported", contract.ErrorCodeUnsupported)
	}
}

func (a *Adapter) run(cmd *contract.Command, state adapter.SessionState, runner Runner,
	target string, timeout time.Duration, kind contract.ArtifactKind, name string) {

	if timeout <= 0 {
		timeout = a.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(state.Context(), timeout)
	defer cancel()

	result, err := runner(ctx, state.WorkspacePath(), target)
	if err != nil {
		switch {
		case state.Context().Err() != nil:
			adapter.CompleteFailure(state, cmd, "cancelled", contract.ErrorCodeCancelled)
		case ctx.Err() == context.DeadlineExceeded:
			adapter.CompleteFailure(state, cmd, "timeout", contract.ErrorCodeTimeout)
		default:
			adapter.CompleteFailure(state, cmd, err.Error(), contract.ErrorCodeInternal)
		}
		return
	}

	adapter.EmitArtifact(state, cmd, contract.InlineArtifact(kind, name, "text/plain", result.Output))
	if !result.Passed {
		adapter.CompleteFailure(state, cmd, fmt.Sprintf("%s failed", cmd.Kind), "")
		return
	}
	adapter.CompleteSuccess(state, cmd, fmt.Sprintf("%s passed", cmd.Kind))
}
