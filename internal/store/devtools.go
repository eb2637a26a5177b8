package store

import (
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reactive"
)

// DevtoolsHook receives the diagnostics stream of a store: an init event,
// every mutation, every action phase and every reported error, including
// action handler failures.
type DevtoolsHook interface {
	Init(s *Store) error
	Mutation(m Mutation, state *reactive.Object)
	Action(ev ActionEvent, phase ir.ActionPhase, err error)
	Error(err error)
}

const devtoolsPluginName = "statetree/devtools"

type devtoolsPlugin struct {
	hook DevtoolsHook
}

func (devtoolsPlugin) Name() string { return devtoolsPluginName }

func (p devtoolsPlugin) Apply(s *Store) error {
	if err := p.hook.Init(s); err != nil {
		return err
	}
	s.Subscribe(p.hook.Mutation)
	s.SubscribeAction(ActionSubscriber{
		Before: func(ev ActionEvent, _ *reactive.Object) { p.hook.Action(ev, ir.ActionPhaseBefore, nil) },
		After:  func(ev ActionEvent, _ *reactive.Object) { p.hook.Action(ev, ir.ActionPhaseAfter, nil) },
		Error:  func(ev ActionEvent, _ *reactive.Object, err error) { p.hook.Action(ev, ir.ActionPhaseError, err) },
	})
	return nil
}
