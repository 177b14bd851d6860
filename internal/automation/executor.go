package automation

import (
	"context"
	"fmt"
	"sort"

	"automator/internal/models"

	"go.uber.org/zap"
)

// ActionHandler performs one action kind; typed parameters are in a.Params
type ActionHandler func(ctx context.Context, env *ActionEnv, a models.Action) error

// ActionEnv carries the collaborators and state snapshot an action handler may use
type ActionEnv struct {
	State     models.DeviceState
	Commander Commander
	Packages  PackageCatalog
	BlockList BlockList
	Services  ServiceStatus
}

// PipelineResult summarizes one pipeline run
type PipelineResult struct {
	Executed int
	Failed   int
	Skipped  int
	Errors   []error
}

// Pipeline executes a rule's enabled actions in sequence order, isolating failures per action
type Pipeline struct {
	handlers  map[models.ActionKind]ActionHandler
	states    StateProvider
	commander Commander
	packages  PackageCatalog
	blocklist BlockList
	services  ServiceStatus
	logger    *zap.Logger
}

// NewPipeline creates a pipeline with the built-in handler table
func NewPipeline(states StateProvider, commander Commander, packages PackageCatalog, blocklist BlockList, services ServiceStatus, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		handlers:  defaultHandlers(),
		states:    states,
		commander: commander,
		packages:  packages,
		blocklist: blocklist,
		services:  services,
		logger:    logger.Named("pipeline"),
	}
}

// Register installs or replaces the handler of a kind
func (p *Pipeline) Register(kind models.ActionKind, h ActionHandler) {
	p.handlers[kind] = h
}

func (p *Pipeline) env(ctx context.Context) *ActionEnv {
	env := &ActionEnv{
		Commander: p.commander,
		Packages:  p.packages,
		BlockList: p.blocklist,
		Services:  p.services,
	}
	if p.states != nil {
		snap, err := p.states.Snapshot(ctx)
		if err != nil {
			p.logger.Warn("Failed to load device state for actions", zap.Error(err))
		}
		env.State = snap
	}
	return env
}

// Run executes actions in ascending sequence. Disabled actions are skipped;
// a failing action is logged and the run continues with the next one.
func (p *Pipeline) Run(ctx context.Context, actions []models.Action) PipelineResult {
	ordered := make([]models.Action, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	var res PipelineResult
	env := p.env(ctx)
	for _, a := range ordered {
		if !a.IsEnabled {
			res.Skipped++
			continue
		}
		if err := p.runOne(ctx, env, a); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			p.logger.Warn("Action failed",
				zap.String("rule_id", a.RuleID),
				zap.String("action_id", a.ID),
				zap.String("kind", string(a.Kind)),
				zap.String("hint", models.Hint(err)),
				zap.Error(err))
			continue
		}
		res.Executed++
		p.logger.Debug("Action executed", zap.String("action_id", a.ID), zap.String("kind", string(a.Kind)))
	}
	return res
}

func (p *Pipeline) runOne(ctx context.Context, env *ActionEnv, a models.Action) (err error) {
	if a.ParamsErr != nil {
		return a.ParamsErr
	}
	h, ok := p.handlers[a.Kind]
	if !ok {
		return models.NewMalformedError("execute action", fmt.Errorf("no handler for kind %q", a.Kind))
	}
	defer func() {
		if r := recover(); r != nil {
			err = models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	return h(ctx, env, a)
}
