package gamerunner

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"providence/internal/hostmsg"
	"providence/internal/session"
	"providence/internal/store"
)

// Reporter receives reports for the session; session.Session satisfies it.
type Reporter interface {
	PostRunnerReport(report session.RunnerReport) error
}

type instanceState struct {
	id         hostmsg.GameID
	instanceID string
	local      bool
	inst       Instance
	aborted    bool
	report     hostmsg.GameOverReport
}

// Runner hosts at most one game instance and never blocks its caller.
type Runner struct {
	launcher Launcher
	cmds     chan queuedCommand

	// End and Abort bypass cmds so a full queue cannot lose them. seq keeps
	// them ordered against queued starts; an abort absorbs a pending end.
	mu      sync.Mutex
	seq     uint64
	stop    *queuedCommand
	stopped chan struct{}
}

type queuedCommand struct {
	cmd session.GameCommand
	seq uint64
}

func New(launcher Launcher) *Runner {
	return &Runner{
		launcher: launcher,
		cmds:     make(chan queuedCommand, 32),
		stopped:  make(chan struct{}, 1),
	}
}

func (r *Runner) Handle(cmd session.GameCommand) {
	r.mu.Lock()
	r.seq++
	q := queuedCommand{cmd: cmd, seq: r.seq}
	switch cmd.(type) {
	case session.EndGame, session.AbortGame:
		if r.stop == nil {
			r.stop = &q
		} else if _, aborting := r.stop.cmd.(session.AbortGame); !aborting {
			r.stop.cmd = cmd
		}
		r.mu.Unlock()
		select {
		case r.stopped <- struct{}{}:
		default:
		}
		return
	}
	defer r.mu.Unlock()
	select {
	case r.cmds <- q:
	default:
		metricCommandsDrop.Add(1)
		log.Warn().Str("command", cmd.CommandName()).Msg("game runner busy, command dropped")
	}
}

// takeStop returns the pending stop if it was handed in before seq.
func (r *Runner) takeStop(before uint64) session.GameCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil || r.stop.seq > before {
		return nil
	}
	cmd := r.stop.cmd
	r.stop = nil
	return cmd
}

// Start processes commands until ctx is done; the running instance is killed
// on exit.
func (r *Runner) Start(ctx context.Context, reporter Reporter) {
	go r.loop(ctx, reporter)
}

func (r *Runner) loop(ctx context.Context, reporter Reporter) {
	var cur *instanceState
	for {
		var reports <-chan InstanceReport
		if cur != nil {
			reports = cur.inst.Reports()
		}
		select {
		case <-ctx.Done():
			if cur != nil {
				cur.inst.Stop(false)
			}
			return
		case q := <-r.cmds:
			cur = r.applyQueued(ctx, cur, q, reporter)
		case <-r.stopped:
			cur = r.drainQueued(ctx, cur, reporter)
			if cmd := r.takeStop(^uint64(0)); cmd != nil {
				cur = r.apply(ctx, cur, cmd, reporter)
			}
		case rep, ok := <-reports:
			if !ok {
				r.exited(cur, reporter)
				cur = nil
				continue
			}
			r.handleReport(cur, rep, reporter)
		}
	}
}

func (r *Runner) applyQueued(ctx context.Context, cur *instanceState, q queuedCommand, reporter Reporter) *instanceState {
	if stop := r.takeStop(q.seq); stop != nil {
		cur = r.apply(ctx, cur, stop, reporter)
	}
	return r.apply(ctx, cur, q.cmd, reporter)
}

func (r *Runner) drainQueued(ctx context.Context, cur *instanceState, reporter Reporter) *instanceState {
	for {
		select {
		case q := <-r.cmds:
			cur = r.applyQueued(ctx, cur, q, reporter)
		default:
			return cur
		}
	}
}

func (r *Runner) apply(ctx context.Context, cur *instanceState, cmd session.GameCommand, reporter Reporter) *instanceState {
	switch c := cmd.(type) {
	case session.StartGame:
		if cur != nil && cur.id == c.GameID && !cur.local {
			err := cur.inst.Deliver(StartPayload{Type: LineToken, InstanceID: cur.instanceID, GameID: c.GameID, Token: c.Token})
			if err != nil {
				log.Warn().Err(err).Uint64("game_id", uint64(c.GameID)).Msg("deliver connect token failed")
			}
			return cur
		}
		if cur != nil {
			log.Warn().
				Uint64("game_id", uint64(c.GameID)).
				Uint64("running_game_id", uint64(cur.id)).
				Msg("start ignored, another game is running")
			return cur
		}
		return r.launch(ctx, StartPayload{
			Type:      LineStart,
			GameID:    c.GameID,
			Token:     c.Token,
			StartInfo: c.StartInfo,
		}, false, reporter)
	case session.StartLocalGame:
		if cur != nil {
			log.Warn().Uint64("game_id", uint64(c.Pack.GameID)).Msg("local start ignored, a game is running")
			return cur
		}
		return r.launch(ctx, StartPayload{
			Type:   LineStartLocal,
			GameID: c.Pack.GameID,
			Config: c.Pack.Config,
		}, true, reporter)
	case session.EndGame:
		if cur != nil {
			cur.inst.Stop(true)
		}
	case session.AbortGame:
		if cur != nil && !cur.aborted {
			cur.aborted = true
			cur.inst.Stop(false)
		}
	}
	return cur
}

func (r *Runner) launch(ctx context.Context, p StartPayload, local bool, reporter Reporter) *instanceState {
	p.InstanceID = store.NewID()
	inst, err := r.launcher.Launch(ctx, p)
	if err != nil {
		metricLaunchErrors.Add(1)
		log.Error().Err(err).Uint64("game_id", uint64(p.GameID)).Msg("game launch failed")
		post(reporter, abortedReport(p.GameID, local))
		return nil
	}
	metricLaunches.Add(1)
	log.Info().
		Str("instance_id", p.InstanceID).
		Uint64("game_id", uint64(p.GameID)).
		Bool("local", local).
		Msg("game instance launched")
	return &instanceState{id: p.GameID, instanceID: p.InstanceID, local: local, inst: inst}
}

func (r *Runner) handleReport(cur *instanceState, rep InstanceReport, reporter Reporter) {
	switch rep.Type {
	case ReportRequestConnectToken:
		if cur.local {
			log.Warn().Uint64("game_id", uint64(cur.id)).Msg("local game asked for a connect token")
			return
		}
		post(reporter, session.TokenRequested{GameID: cur.id})
	case ReportGameOver:
		cur.report = rep.Report
		log.Info().Uint64("game_id", uint64(cur.id)).Msg("game instance reported game over")
	default:
		log.Debug().Str("type", rep.Type).Msg("unknown game instance report")
	}
}

// exited reports an instance that stopped. A crash counts as an abort.
func (r *Runner) exited(cur *instanceState, reporter Reporter) {
	err := cur.inst.Err()
	aborted := cur.aborted || (err != nil && cur.report == nil)
	log.Info().
		Err(err).
		Str("instance_id", cur.instanceID).
		Uint64("game_id", uint64(cur.id)).
		Bool("aborted", aborted).
		Msg("game instance exited")
	switch {
	case aborted:
		post(reporter, abortedReport(cur.id, cur.local))
	case cur.local:
		post(reporter, session.LocalGameEnded{GameID: cur.id, Report: cur.report})
	default:
		post(reporter, session.GameEnded{GameID: cur.id})
	}
}

func abortedReport(id hostmsg.GameID, local bool) session.RunnerReport {
	if local {
		return session.LocalGameAborted{GameID: id}
	}
	return session.GameAbortedByRunner{GameID: id}
}

func post(reporter Reporter, report session.RunnerReport) {
	if err := reporter.PostRunnerReport(report); err != nil {
		log.Warn().Err(err).Msgf("runner report %T dropped", report)
	}
}
