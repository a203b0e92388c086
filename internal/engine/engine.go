package engine

import (
	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/options"
)

// Input is the read-only view a pass is computed from.
type Input struct {
	Flags  map[string]bool
	Config options.Snapshot
	// ResourceReady is true when the server jar exists with a non-zero size.
	ResourceReady bool
	// ServiceRunning is the live observation from the service manager.
	ServiceRunning bool
}

type pass struct {
	trigger  Trigger
	in       Input
	flags    map[string]bool
	actions  []Action
	handlers []string

	rendered     bool
	linked       bool
	reconfigured bool
}

func newPass(trigger Trigger, in Input) *pass {
	flags := make(map[string]bool, len(in.Flags))
	for name, value := range in.Flags {
		if value {
			flags[name] = true
		}
	}
	return &pass{trigger: trigger, in: in, flags: flags}
}

func (p *pass) emit(action Action) {
	p.actions = append(p.actions, action)
	for name, value := range action.Sets {
		p.flags[name] = value
	}
}

func (p *pass) report(report health.Report) {
	p.emit(Action{Kind: ReportStatus, Status: report})
}

func (p *pass) plan() Plan {
	return Plan{Trigger: p.trigger, Handlers: p.handlers, Actions: p.actions}
}

func (p *pass) fire(h handler) bool {
	if !h.when(p) {
		return false
	}
	p.handlers = append(p.handlers, h.name)
	h.run(p)
	return true
}

type handler struct {
	name string
	when func(p *pass) bool
	run  func(p *pass)
}

var (
	installHandler = handler{
		name: "install",
		when: func(p *pass) bool { return !p.flags[FlagInstalled] },
		run:  runInstall,
	}
	upgradeHandler = handler{
		name: "upgrade",
		when: func(p *pass) bool {
			return p.trigger == TriggerUpgrade && p.flags[FlagInstalled] && !p.linked
		},
		run: runUpgrade,
	}
	reconfigureHandler = handler{
		name: "reconfigure",
		when: func(p *pass) bool {
			return p.flags[FlagInstalled] && !p.rendered && p.in.Config.AnyChanged()
		},
		run: runReconfigure,
	}
	startHandler = handler{
		name: "start",
		when: func(p *pass) bool {
			return p.flags[FlagInstalled] && (!p.flags[FlagStarted] || p.reconfigured)
		},
		run: runStart,
	}
)

var table = []handler{installHandler, upgradeHandler, reconfigureHandler, startHandler}

// Reconcile evaluates the full handler table for one pass.
func Reconcile(trigger Trigger, in Input) Plan {
	p := newPass(trigger, in)
	for _, h := range table {
		p.fire(h)
	}
	return p.plan()
}

// Install evaluates only the install handler.
func Install(in Input) Plan {
	return single(TriggerInstall, in, installHandler)
}

// Upgrade evaluates only the upgrade handler.
func Upgrade(in Input) Plan {
	return single(TriggerUpgrade, in, upgradeHandler)
}

// Reconfigure evaluates the reconfigure handler followed by the restart
// branch it requests.
func Reconfigure(in Input) Plan {
	p := newPass(TriggerConfigChanged, in)
	if p.fire(reconfigureHandler) && p.reconfigured {
		p.fire(startHandler)
	}
	return p.plan()
}

// Start evaluates only the start handler.
func Start(in Input) Plan {
	return single(TriggerStart, in, startHandler)
}

// ForTrigger evaluates the entry point that belongs to trigger. Triggers
// without a dedicated entry point evaluate the full table.
func ForTrigger(trigger Trigger, in Input) Plan {
	switch trigger {
	case TriggerInstall:
		return Install(in)
	case TriggerConfigChanged:
		return Reconfigure(in)
	case TriggerUpgrade:
		return Upgrade(in)
	case TriggerStart:
		return Start(in)
	default:
		return Reconcile(trigger, in)
	}
}

func single(trigger Trigger, in Input, h handler) Plan {
	p := newPass(trigger, in)
	p.fire(h)
	return p.plan()
}

func runInstall(p *pass) {
	p.emit(Action{Kind: CreateSystemAccount})
	p.emit(Action{Kind: RenderEulaAcceptance})
	p.emit(Action{Kind: RenderServiceProperties})
	p.emit(Action{Kind: RenderServiceUnit})
	p.emit(Action{Kind: LinkResource})
	p.emit(Action{Kind: ReloadUnitManager, Sets: map[string]bool{FlagInstalled: true}})
	p.rendered = true
	p.linked = true
}

// runUpgrade adopts a new resource; clearing started forces the start branch
// to pick start or restart from the live probe.
func runUpgrade(p *pass) {
	p.emit(Action{Kind: LinkResource, Sets: map[string]bool{FlagStarted: false}})
	p.linked = true
}

// runReconfigure re-renders the properties. On a started server a
// restart-requiring change clears started together with the render, so the
// restart stays owed until a service action sets it again.
func runReconfigure(p *pass) {
	changed := p.in.Config.ChangedNames()
	if p.in.Config.Changed(options.ServerPort) {
		p.emit(Action{Kind: CloseAllOpenPorts})
	}
	render := Action{Kind: RenderServiceProperties}
	if p.flags[FlagStarted] && options.RequiresRestart(changed) {
		render.Sets = map[string]bool{FlagStarted: false}
		p.reconfigured = true
	}
	p.emit(render)
	p.rendered = true
}

func runStart(p *pass) {
	if !p.in.ResourceReady {
		p.report(health.Blocked(health.MessageNeedResource))
		return
	}

	p.emit(Action{Kind: OpenPort, Port: p.in.Config.Int(options.ServerPort)})
	if p.in.ServiceRunning {
		p.report(health.Maintenance(health.MessageRestarting))
		p.emit(Action{Kind: RestartService, Sets: map[string]bool{FlagStarted: true}})
	} else {
		p.report(health.Maintenance(health.MessageStarting))
		p.emit(Action{Kind: StartService, Sets: map[string]bool{FlagStarted: true}})
	}
	p.report(health.Active(health.MessageReady))
}
