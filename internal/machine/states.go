package machine

import (
	"context"

	"github.com/superfly/fsm"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
)

type transitionFunc func(ctx context.Context, req *fsm.Request[FSMRequest, FSMResponse], app *AppContext) (*fsm.Response[FSMResponse], error)

// WithApp binds app to a state function.
func WithApp(app *AppContext, fn transitionFunc) func(context.Context, *fsm.Request[FSMRequest, FSMResponse]) (*fsm.Response[FSMResponse], error) {
	return func(ctx context.Context, req *fsm.Request[FSMRequest, FSMResponse]) (*fsm.Response[FSMResponse], error) {
		return fn(ctx, req, app)
	}
}

// current is the context handed over by the previous transition, or the
// run's inputs for the first one.
func current(req *fsm.Request[FSMRequest, FSMResponse]) deploy.DeployContext {
	if w := req.W.Msg; w != nil && w.Deploy.Phase != "" {
		return w.Deploy
	}
	return req.Msg.Deploy.WithPhase(deploy.PhaseStart)
}

// Step adapts a reconciler step to an FSM state. Step errors abort the run:
// every reconciler failure is terminal and must not be retried.
func Step(run deploy.StepFunc) transitionFunc {
	return transition(run, false)
}

// FinalStep is Step for the last state before "done"; it completes the run.
func FinalStep(run deploy.StepFunc) transitionFunc {
	return transition(run, true)
}

func transition(run deploy.StepFunc, final bool) transitionFunc {
	return func(ctx context.Context, req *fsm.Request[FSMRequest, FSMResponse], app *AppContext) (*fsm.Response[FSMResponse], error) {
		id := req.Msg.ReleaseID
		dc := current(req)

		next, err := run(ctx, dc)
		if err != nil {
			app.finish(ctx, id, dc, err)
			return nil, fsm.Abort(err)
		}

		if final {
			next = app.Reconciler.Finish(next)
			app.finish(ctx, id, next, nil)
		} else {
			app.advance(ctx, id, next)
		}

		return &fsm.Response[FSMResponse]{
			Msg: &FSMResponse{Deploy: next},
		}, nil
	}
}
