package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"providence/internal/hostmsg"
)

// firstLocalGameID keeps local game ids out of the host's id range.
const firstLocalGameID hostmsg.GameID = 1 << 63

// RunningGame is the game the runner was last told to start.
type RunningGame struct {
	GameID hostmsg.GameID `json:"game_id"`
	Local  bool           `json:"local"`
	// NeedsToken is set while the instance waits for a fresh connect token.
	NeedsToken bool `json:"needs_token"`
	Aborting   bool `json:"aborting"`
}

// tokenRequester issues a connect-token request through the request tracker.
type tokenRequester func(id hostmsg.GameID, now time.Time) error

// Orchestrator arbitrates which single game should be running, given host
// pushes, runner reports and connection loss arriving in any order.
type Orchestrator struct {
	starter ClientStarter
	token   CachedConnectToken
	running *RunningGame

	needToken     bool
	retryInterval time.Duration
	lastTokenReq  time.Time
	nextLocalID   hostmsg.GameID

	dispatch func(GameCommand)
}

func NewOrchestrator(tokenRetryInterval time.Duration, dispatch func(GameCommand)) *Orchestrator {
	return &Orchestrator{
		retryInterval: tokenRetryInterval,
		nextLocalID:   firstLocalGameID,
		dispatch:      dispatch,
	}
}

// inGame is true while a game is running and not waiting on a token. An
// aborting game blocks new starts until the runner confirms.
func (o *Orchestrator) inGame() bool {
	if o.running == nil {
		return false
	}
	return !o.running.NeedsToken || o.running.Aborting
}

func (o *Orchestrator) abortRunning(reason string) {
	if o.running == nil || o.running.Aborting {
		return
	}
	o.running.Aborting = true
	metricGameAborts.Add(1)
	log.Info().
		Uint64("game_id", uint64(o.running.GameID)).
		Str("reason", reason).
		Msg("aborting running game")
	o.dispatch(AbortGame{})
}

// runningHost reports whether the host game id is the one running. A local
// game never matches, even when its id coincides.
func (o *Orchestrator) runningHost(id hostmsg.GameID) bool {
	return o.running != nil && !o.running.Local && o.running.GameID == id
}

func (o *Orchestrator) runningLocal(id hostmsg.GameID) bool {
	return o.running != nil && o.running.Local && o.running.GameID == id
}

func (o *Orchestrator) OnGameStart(msg hostmsg.GameStart) {
	if o.running != nil && !o.runningHost(msg.GameID) {
		o.abortRunning("host started another game")
	}
	o.starter.Set(msg.GameID, msg.StartInfo)
	if o.runningHost(msg.GameID) && !o.running.NeedsToken {
		log.Debug().Uint64("game_id", uint64(msg.GameID)).Msg("game start for running game, token discarded")
		return
	}
	o.token.Set(msg.GameID, msg.Token)
	o.needToken = false
}

func (o *Orchestrator) OnGameAborted(id hostmsg.GameID) {
	o.starter.ClearIfMatches(id)
	o.token.ClearIfMatches(id)
	if o.runningHost(id) {
		o.abortRunning("host aborted game")
	}
}

// OnGameOver leaves the running game alone so its game-over screen stays up.
func (o *Orchestrator) OnGameOver(id hostmsg.GameID) {
	o.starter.ClearIfMatches(id)
	o.token.ClearIfMatches(id)
}

func (o *Orchestrator) OnRunnerEnded(id hostmsg.GameID) {
	o.starter.ClearIfMatches(id)
	if o.runningHost(id) {
		o.running = nil
	}
	o.resetTokenNeed()
}

func (o *Orchestrator) OnRunnerAborted(id hostmsg.GameID) {
	o.starter.ClearIfMatches(id)
	if o.runningHost(id) {
		o.abortRunning("runner aborted game")
		o.running = nil
	}
	o.resetTokenNeed()
}

// OnLocalEnded and OnLocalAborted never touch the starter: a local game
// shares no state with a pending host game.
func (o *Orchestrator) OnLocalEnded(id hostmsg.GameID) {
	if o.runningLocal(id) {
		o.running = nil
	}
}

func (o *Orchestrator) OnLocalAborted(id hostmsg.GameID) {
	if o.runningLocal(id) {
		o.abortRunning("local game aborted")
		o.running = nil
	}
}

// OnTokenRequested handles the runner asking to reconnect its instance.
func (o *Orchestrator) OnTokenRequested(id hostmsg.GameID) {
	if !o.runningHost(id) {
		metricProtocolMismatches.Add(1)
		log.Warn().Uint64("game_id", uint64(id)).Msg("token requested for game that is not running")
		return
	}
	o.running.NeedsToken = true
	if starterID, ok := o.starter.GameID(); ok && starterID == id {
		o.needToken = true
	}
}

// OnConnectTokenFailed is called when a connect-token request ends in failure.
func (o *Orchestrator) OnConnectTokenFailed() {
	if o.starter.HasStarter() && !o.inGame() {
		o.needToken = true
	}
}

func (o *Orchestrator) OnConnectToken(id hostmsg.GameID, token hostmsg.ServerConnectToken) {
	starterID, ok := o.starter.GameID()
	if !ok || starterID != id {
		metricProtocolMismatches.Add(1)
		log.Warn().Uint64("game_id", uint64(id)).Msg("connect token for unknown game dropped")
		return
	}
	o.token.Set(id, token)
	o.needToken = false
}

// OnConnectionLost drops the starter whatever its game; only the host can
// say whether that game should still run.
func (o *Orchestrator) OnConnectionLost() {
	if o.starter.Clear() {
		log.Info().Msg("game starter cleared on connection loss")
	}
	o.needToken = false
}

func (o *Orchestrator) StartLocal(pack LaunchPack) (hostmsg.GameID, error) {
	if o.starter.HasStarter() {
		log.Warn().Msg("local game rejected, host game start pending")
		return 0, ErrStarterPending
	}
	if o.running != nil {
		log.Warn().Uint64("game_id", uint64(o.running.GameID)).Msg("local game rejected, game running")
		return 0, ErrGameRunning
	}
	if pack.GameID == 0 {
		pack.GameID = o.nextLocalID
		o.nextLocalID++
	}
	o.running = &RunningGame{GameID: pack.GameID, Local: true}
	metricGameStarts.Add(1)
	log.Info().Uint64("game_id", uint64(pack.GameID)).Msg("starting local game")
	o.dispatch(StartLocalGame{Pack: pack})
	return pack.GameID, nil
}

func (o *Orchestrator) EndGame() error {
	if o.running == nil {
		return ErrNoGameRunning
	}
	o.dispatch(EndGame{})
	return nil
}

// Tick consumes a cached token into a Start and, failing that, reissues a
// connect-token request when one is needed.
func (o *Orchestrator) Tick(now time.Time, request tokenRequester) {
	if o.inGame() {
		return
	}
	starterID, ok := o.starter.GameID()
	if !ok {
		return
	}
	if id, token, ok := o.token.Take(); ok {
		if id != starterID {
			metricTokensDropped.Add(1)
			log.Warn().
				Uint64("game_id", uint64(id)).
				Uint64("starter_game_id", uint64(starterID)).
				Msg("cached connect token does not match starter, dropped")
		} else {
			o.start(id, token)
			return
		}
	}
	if !o.needToken {
		return
	}
	if !o.lastTokenReq.IsZero() && elapsedSince(o.lastTokenReq, now) < o.retryInterval {
		return
	}
	if err := request(starterID, now); err != nil {
		log.Debug().Err(err).Uint64("game_id", uint64(starterID)).Msg("connect token request deferred")
		return
	}
	o.lastTokenReq = now
	o.needToken = false
}

func (o *Orchestrator) start(id hostmsg.GameID, token hostmsg.ServerConnectToken) {
	if o.runningHost(id) {
		o.running.NeedsToken = false
	} else {
		o.running = &RunningGame{GameID: id}
	}
	metricGameStarts.Add(1)
	log.Info().Uint64("game_id", uint64(id)).Msg("starting game")
	o.dispatch(StartGame{GameID: id, Token: token, StartInfo: o.starter.StartInfo()})
}

func (o *Orchestrator) resetTokenNeed() {
	if !o.starter.HasStarter() {
		o.needToken = false
	}
}

// StarterView is the observable part of the orchestrator state.
type StarterView struct {
	HasStarter     bool           `json:"has_starter"`
	GameID         hostmsg.GameID `json:"game_id,omitempty"`
	TokenCached    bool           `json:"token_cached"`
	NeedTokenFetch bool           `json:"need_token_fetch"`
	Running        *RunningGame   `json:"running,omitempty"`
}

func (o *Orchestrator) View() StarterView {
	id, has := o.starter.GameID()
	_, cached := o.token.Peek()
	v := StarterView{HasStarter: has, GameID: id, TokenCached: cached, NeedTokenFetch: o.needToken}
	if o.running != nil {
		r := *o.running
		v.Running = &r
	}
	return v
}
