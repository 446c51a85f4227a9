// Package agent contains the copilot's two state machines: the action
// routing agent that classifies and answers a query end to end, and the
// tabular sub-agent it delegates dataset questions to.
package agent

import (
	"context"
	"fmt"

	logx "github.com/waffles-copilot/server/pkg/logger"
)

// State names one node of an agent state machine.
type State string

// StateDone is the shared terminal state.
const StateDone State = "done"

// maxSteps bounds a single run; both machines are a handful of states deep,
// so hitting the bound means a transition bug, not a long workload.
const maxSteps = 16

// stepFn executes one state and names the next.
type stepFn func(ctx context.Context) (State, error)

// drive runs the machine from start until StateDone. State errors are not
// caught here; they abort the run and surface to the caller.
func drive(ctx context.Context, name string, steps map[State]stepFn, start State) error {
	state := start
	for i := 0; i < maxSteps; i++ {
		if state == StateDone {
			return nil
		}
		step, ok := steps[state]
		if !ok {
			return fmt.Errorf("%s agent: no transition from state %q", name, state)
		}
		logx.Debug().Str("agent", name).Str("state", string(state)).Msg("entering state")

		next, err := step(ctx)
		if err != nil {
			return fmt.Errorf("%s agent: state %s: %w", name, state, err)
		}
		state = next
	}
	return fmt.Errorf("%s agent: no terminal state after %d steps", name, maxSteps)
}
