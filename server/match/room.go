package match

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/core/scoring"
	"github.com/velotype/velotype/server/wire"
)

// Client is the transport-side handle of one connected participant. Send must
// never block; the connection layer buffers frames and drops slow consumers.
type Client interface {
	UserID() string
	Username() string
	Send(msgType string, payload interface{})
	CloseWithCode(code int, reason string)
}

type phase int

const (
	phaseLobby phase = iota
	phasePrep
	phaseCountdown
	phaseTyping
	phaseBreak
	phaseComplete
)

// aggregate is one player's running totals across resolved rounds. Samples
// stay cumulative across rounds by offsetting each round's samples with the
// typed total before it.
type aggregate struct {
	wpm, rawWpm, accuracy, consistency, score []float64
	correctChars, totalTyped, errors          int
	damageDealt, damageTaken                  int
	samples                                   []int
	submittedRounds                           int
}

// Room owns the runtime state of one match. A single goroutine executes every
// mutation; sockets and timers post closures into cmds and never touch state
// directly.
type Room struct {
	cfg *Config
	svc *Service
	log *logrus.Entry
	now func() time.Time

	cmds chan func()
	done chan struct{}

	// Owner-goroutine state. Nothing below is read or written outside run().
	phase          phase
	currentRound   int
	resolvedRounds int
	roundStartAt   time.Time
	clients        map[string]Client
	hp             map[string]int
	roundWins      map[string]int
	aggregates     map[string]*aggregate
	submissions    map[string]*scoring.Submission
	progress       map[string]*wire.Progress
	overtime       bool
	windowOpen     bool
	windowClosesAt time.Time
	drawVotes      map[string]string
	finalized      bool
	abandoned      bool
	timerSeq       int
	graceTimers    map[string]*time.Timer
}

func newRoom(svc *Service, cfg *Config) *Room {
	r := &Room{
		cfg:         cfg,
		svc:         svc,
		log:         log.WithField("matchId", cfg.MatchID),
		now:         time.Now,
		cmds:        make(chan func(), 64),
		done:        make(chan struct{}),
		clients:     make(map[string]Client, 2),
		hp:          make(map[string]int, 2),
		roundWins:   make(map[string]int, 2),
		aggregates:  make(map[string]*aggregate, 2),
		submissions: make(map[string]*scoring.Submission, 2),
		progress:    make(map[string]*wire.Progress, 2),
		drawVotes:   make(map[string]string, 2),
		graceTimers: make(map[string]*time.Timer, 2),
	}
	startingHp := params.VeloTypeConfig().StartingHp
	for _, p := range cfg.Players {
		r.hp[p.UserID] = startingHp
		r.roundWins[p.UserID] = 0
		r.aggregates[p.UserID] = &aggregate{}
	}
	go r.run()
	// Participants have until the reconnect grace past the planned start to
	// show up; past that the lobby resolves by forfeit or abandonment.
	r.post(func() {
		r.armAt(cfg.StartAt.Add(reconnectGrace()), r.lobbyDeadline)
	})
	return r
}

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case fn := <-r.cmds:
			fn()
			if r.finalized {
				return
			}
		case <-r.svc.ctx.Done():
			// Process shutdown: in-flight matches are abandoned, sockets
			// drop, clients re-queue.
			return
		}
	}
}

// post hands a closure to the owner goroutine. Posts after completion or
// shutdown are dropped.
func (r *Room) post(fn func()) {
	select {
	case r.cmds <- fn:
	case <-r.done:
	case <-r.svc.ctx.Done():
	}
}

// armAt schedules fn on the owner goroutine at deadline, superseding any
// previously armed phase timer. Phases are strictly sequential, so one
// pending phase timer is enough.
func (r *Room) armAt(deadline time.Time, fn func()) {
	r.timerSeq++
	seq := r.timerSeq
	delay := deadline.Sub(r.now())
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		r.post(func() {
			if r.timerSeq == seq && !r.finalized {
				fn()
			}
		})
	})
}

// Join binds a socket to this room. A second socket for the same user
// supersedes the first; reconnects mid-match receive a recovery frame.
func (r *Room) Join(c Client) {
	r.post(func() { r.join(c) })
}

// Disconnect unbinds a socket and starts the reconnect grace timer. Stale
// sockets that were already superseded are ignored.
func (r *Room) Disconnect(c Client) {
	r.post(func() { r.disconnect(c) })
}

// Progress ingests a live typing snapshot.
func (r *Room) Progress(userID string, p *wire.Progress) {
	r.post(func() { r.handleProgress(userID, p) })
}

// Submit ingests a round submission.
func (r *Room) Submit(userID string, res *wire.Result) {
	r.post(func() { r.handleSubmit(userID, res) })
}

// Forfeit concedes the match for userID.
func (r *Room) Forfeit(userID string) {
	r.post(func() { r.handleForfeit(userID) })
}

// Vote casts a draw vote for userID.
func (r *Room) Vote(userID, vote string) {
	r.post(func() { r.handleVote(userID, vote) })
}

func (r *Room) join(c Client) {
	uid := c.UserID()
	if r.cfg.player(uid) == nil {
		c.Send(wire.MsgError, &wire.ErrorMessage{Message: "not in match"})
		return
	}
	if prev, ok := r.clients[uid]; ok && prev != c {
		prev.CloseWithCode(wire.CloseNormal, "session superseded")
	}
	r.clients[uid] = c
	r.cancelGrace(uid)
	c.Send(wire.MsgJoined, &wire.Joined{
		MatchID:    r.cfg.MatchID,
		UserID:     uid,
		ServerTime: r.now().UnixMilli(),
	})
	opp := r.cfg.opponent(uid)
	if oppClient, ok := r.clients[opp.UserID]; ok {
		oppClient.Send(wire.MsgOpponentJoined, &wire.OpponentJoined{UserID: uid, Username: c.Username()})
		c.Send(wire.MsgOpponentJoined, &wire.OpponentJoined{UserID: opp.UserID, Username: opp.Username})
	}
	if r.phase == phaseLobby {
		if len(r.clients) == len(r.cfg.Players) {
			r.beginSchedule()
		}
		return
	}
	r.sendRecovery(c)
}

func (r *Room) disconnect(c Client) {
	uid := c.UserID()
	if r.clients[uid] != c {
		return
	}
	delete(r.clients, uid)
	grace := reconnectGrace()
	opp := r.cfg.opponent(uid)
	if oppClient, ok := r.clients[opp.UserID]; ok {
		oppClient.Send(wire.MsgOpponentLeft, &wire.OpponentLeft{
			UserID:  uid,
			GraceMs: uint64(grace.Milliseconds()),
		})
	}
	if r.phase == phaseLobby {
		// The lobby deadline already covers no-shows.
		return
	}
	r.graceTimers[uid] = time.AfterFunc(grace, func() {
		r.post(func() { r.graceExpired(uid) })
	})
}

// graceExpired runs once after ReconnectGraceMs; the occupancy re-check makes
// a rejoin in the meantime a no-op.
func (r *Room) graceExpired(uid string) {
	if r.finalized {
		return
	}
	if _, connected := r.clients[uid]; connected {
		return
	}
	r.hp[uid] = 0
	r.finalize("disconnect", r.cfg.opponent(uid).UserID, uid, false)
}

func (r *Room) cancelGrace(uid string) {
	if t, ok := r.graceTimers[uid]; ok {
		t.Stop()
		delete(r.graceTimers, uid)
	}
}

func (r *Room) lobbyDeadline() {
	if r.phase != phaseLobby {
		return
	}
	var present, missing []string
	for _, p := range r.cfg.Players {
		if _, ok := r.clients[p.UserID]; ok {
			present = append(present, p.UserID)
		} else {
			missing = append(missing, p.UserID)
		}
	}
	if len(missing) == len(r.cfg.Players) {
		r.finalize("abandoned", "", "", true)
		return
	}
	if len(missing) == 1 {
		r.hp[missing[0]] = 0
		r.finalize("no_show", present[0], missing[0], false)
	}
}

func (r *Room) beginSchedule() {
	go r.svc.markInProgress(r.cfg.MatchID)
	if r.now().Before(r.cfg.StartAt) {
		r.phase = phasePrep
		r.armAt(r.cfg.StartAt, r.enterCountdown)
		return
	}
	r.enterCountdown()
}

func (r *Room) enterCountdown() {
	r.currentRound++
	r.phase = phaseCountdown
	r.windowOpen = false
	r.submissions = make(map[string]*scoring.Submission, 2)
	r.progress = make(map[string]*wire.Progress, 2)
	cd := time.Duration(r.cfg.CountdownSeconds) * time.Second
	if r.currentRound == 1 {
		// Round one is wall-clock driven off the published start time so
		// both clients count down in lockstep regardless of join order.
		r.roundStartAt = r.cfg.StartAt.Add(cd)
	} else {
		r.roundStartAt = r.now().Add(cd)
	}
	r.armAt(r.roundStartAt, r.enterTyping)
}

func (r *Room) enterTyping() {
	r.phase = phaseTyping
	deadline := r.roundStartAt.
		Add(time.Duration(r.cfg.RoundTimeSeconds) * time.Second).
		Add(submitGrace())
	r.armAt(deadline, r.resolveRound)
}

func (r *Room) handleProgress(uid string, p *wire.Progress) {
	if r.phase != phaseTyping {
		return
	}
	r.progress[uid] = p
	opp := r.cfg.opponent(uid)
	if oppClient, ok := r.clients[opp.UserID]; ok {
		oppClient.Send(wire.MsgOpponentProgress, &wire.OpponentProgress{UserID: uid, Progress: *p})
	}
}

func (r *Room) handleSubmit(uid string, res *wire.Result) {
	client := r.clients[uid]
	if r.phase != phaseTyping {
		r.sendError(client, "submission past deadline")
		return
	}
	if _, dup := r.submissions[uid]; dup {
		r.sendError(client, "already submitted")
		return
	}
	// Elapsed time is server-authoritative: however late inside the grace a
	// submission lands, the player only ever typed for the round duration.
	elapsed := r.now().Sub(r.roundStartAt)
	if max := time.Duration(r.cfg.RoundTimeSeconds) * time.Second; elapsed > max {
		elapsed = max
	}
	if elapsed < time.Millisecond {
		elapsed = time.Millisecond
	}
	r.submissions[uid] = &scoring.Submission{
		Typed:           res.Typed,
		ElapsedMs:       elapsed.Milliseconds(),
		Samples:         res.Samples,
		TotalErrors:     res.TotalErrors,
		TotalKeystrokes: res.TotalKeystrokes,
	}
	if client != nil {
		client.Send(wire.MsgResultReceived, &wire.ResultReceived{RoundNumber: r.currentRound})
	}
	opp := r.cfg.opponent(uid)
	if oppClient, ok := r.clients[opp.UserID]; ok {
		oppClient.Send(wire.MsgOpponentFinished, &wire.OpponentFinished{UserID: uid, RoundNumber: r.currentRound})
	}
	if len(r.submissions) == len(r.cfg.Players) {
		r.resolveRound()
	}
}

// resolveRound computes both players' round metrics against the authoritative
// text, applies combat damage, and either finalises the match or schedules
// the next round.
func (r *Room) resolveRound() {
	r.timerSeq++ // the submit deadline timer is moot now
	text := r.svc.roundText(r.cfg, r.currentRound)
	maxCps := params.VeloTypeConfig().MaxCharsPerSecRanked

	scores := make(map[string]float64, 2)
	wpm := make(map[string]float64, 2)
	accuracy := make(map[string]float64, 2)
	for _, p := range r.cfg.Players {
		uid := p.UserID
		var m scoring.RoundMetrics
		combat := 0.0
		if sub, ok := r.submissions[uid]; ok {
			m = scoring.Compute(text, *sub, maxCps)
			combat = scoring.CombatScore(m.Wpm, m.Accuracy, r.combatRating(uid))
			r.aggregates[uid].submittedRounds++
		}
		// A missing submission contributes zeros; the round still counts.
		agg := r.aggregates[uid]
		agg.wpm = append(agg.wpm, m.Wpm)
		agg.rawWpm = append(agg.rawWpm, m.RawWpm)
		agg.accuracy = append(agg.accuracy, m.Accuracy)
		agg.consistency = append(agg.consistency, m.Consistency)
		agg.score = append(agg.score, combat)
		agg.correctChars += m.CorrectChars
		agg.errors += m.Errors
		offset := agg.totalTyped
		for _, s := range m.Samples {
			agg.samples = append(agg.samples, offset+s)
		}
		agg.totalTyped += m.TotalTyped
		scores[uid] = combat
		wpm[uid] = m.Wpm
		accuracy[uid] = m.Accuracy
	}

	a, b := r.cfg.Players[0].UserID, r.cfg.Players[1].UserID
	roundWinner := ""
	damage := map[string]int{a: 0, b: 0}
	switch {
	case scores[a] > scores[b]:
		roundWinner = a
	case scores[b] > scores[a]:
		roundWinner = b
	}
	if roundWinner != "" {
		loser := b
		if roundWinner == b {
			loser = a
		}
		dmg := scoring.Damage(scores[roundWinner], scores[loser])
		r.hp[loser] -= dmg
		if r.hp[loser] < 0 {
			r.hp[loser] = 0
		}
		r.aggregates[roundWinner].damageDealt += dmg
		r.aggregates[loser].damageTaken += dmg
		r.roundWins[roundWinner]++
		damage[roundWinner] = dmg
	}
	r.resolvedRounds++
	roundsResolvedTotal.Inc()

	if r.currentRound >= regulationRounds ||
		(r.roundWins[a] >= regulationRounds/2 && r.roundWins[b] >= regulationRounds/2) {
		r.overtime = true
	}

	end := &wire.RoundEnd{
		RoundNumber:    r.currentRound,
		Winner:         roundWinner,
		Hp:             r.hpSnapshot(),
		RoundWins:      r.winsSnapshot(),
		Scores:         scores,
		Damage:         damage,
		Wpm:            wpm,
		Accuracy:       accuracy,
		OvertimeActive: r.overtime,
	}
	if roundWinner == "" {
		end.Winner = "draw"
	}

	// Terminal checks, in priority order: knockout, then the regulation
	// round limit with its HP tie-break.
	if r.hp[a] <= 0 || r.hp[b] <= 0 {
		winner := a
		if r.hp[a] <= 0 {
			winner = b
		}
		r.broadcast(wire.MsgRoundEnd, end)
		r.finalize("knockout", winner, "", false)
		return
	}
	if r.currentRound >= r.cfg.MaxRounds {
		r.broadcast(wire.MsgRoundEnd, end)
		switch {
		case r.hp[a] > r.hp[b]:
			r.finalize("rounds", a, "", false)
		case r.hp[b] > r.hp[a]:
			r.finalize("rounds", b, "", false)
		default:
			r.finalize("draw", "", "", false)
		}
		return
	}

	pause := time.Duration(r.cfg.BreakSeconds) * time.Second
	willOpen := r.overtime && r.currentRound > regulationRounds && (r.currentRound-regulationRounds)%2 == 0
	if willOpen {
		pause += time.Duration(params.VeloTypeConfig().DrawWindowSeconds) * time.Second
	}
	now := r.now()
	r.phase = phaseBreak
	r.windowOpen = willOpen
	r.drawVotes = make(map[string]string, 2)
	r.windowClosesAt = now.Add(pause)
	r.armAt(r.windowClosesAt, r.enterCountdown)

	end.DrawWindowOpen = willOpen
	if willOpen {
		end.DrawWindowClosesAt = r.windowClosesAt.UnixMilli()
	}
	end.NextRoundStartAt = r.windowClosesAt.Add(time.Duration(r.cfg.CountdownSeconds) * time.Second).UnixMilli()
	r.broadcast(wire.MsgRoundEnd, end)
}

// handleVote records a draw vote. A continue vote closes the voting window
// without touching the published round schedule; two draw votes end the
// match as an agreed draw.
func (r *Room) handleVote(uid, vote string) {
	if r.phase != phaseBreak || !r.windowOpen {
		r.sendError(r.clients[uid], "invalid payload")
		return
	}
	r.drawVotes[uid] = vote
	if vote == wire.VoteContinue {
		r.windowOpen = false
		r.drawVotes = make(map[string]string, 2)
		return
	}
	for _, p := range r.cfg.Players {
		if r.drawVotes[p.UserID] != wire.VoteDraw {
			return
		}
	}
	r.finalize("agreed_draw", "", "", false)
}

func (r *Room) handleForfeit(uid string) {
	if r.phase == phaseComplete {
		return
	}
	r.hp[uid] = 0
	r.finalize("forfeit", r.cfg.opponent(uid).UserID, uid, false)
}

func (r *Room) sendRecovery(c Client) {
	uid := c.UserID()
	opp := r.cfg.opponent(uid)
	roundStartAt := r.roundStartAt
	if r.currentRound == 0 {
		roundStartAt = r.cfg.StartAt.Add(time.Duration(r.cfg.CountdownSeconds) * time.Second)
	}
	frame := &wire.StateRecovery{
		ServerTime:        r.now().UnixMilli(),
		MatchID:           r.cfg.MatchID,
		Seed:              r.cfg.Seed,
		Mode:              r.cfg.Mode,
		RoundNumber:       r.currentRound,
		RoundStartAt:      roundStartAt.UnixMilli(),
		RoundTimeSeconds:  r.cfg.RoundTimeSeconds,
		MaxRounds:         r.cfg.MaxRounds,
		RoundWins:         r.winsSnapshot(),
		OvertimeActive:    r.overtime,
		DrawWindowOpen:    r.phase == phaseBreak && r.windowOpen,
		Hp:                r.hpSnapshot(),
		OpponentSubmitted: r.submissions[opp.UserID] != nil,
	}
	if p, ok := r.progress[opp.UserID]; ok {
		snapshot := *p
		frame.OpponentProgress = &snapshot
	}
	c.Send(wire.MsgStateRecovery, frame)
}

func (r *Room) combatRating(uid string) int {
	if p := r.cfg.player(uid); p != nil && p.Rating != nil {
		return *p.Rating
	}
	return params.VeloTypeConfig().BasePlacementRating
}

func (r *Room) broadcast(msgType string, payload interface{}) {
	for _, c := range r.clients {
		c.Send(msgType, payload)
	}
}

func (r *Room) sendError(c Client, message string) {
	if c != nil {
		c.Send(wire.MsgError, &wire.ErrorMessage{Message: message})
	}
}

func (r *Room) hpSnapshot() map[string]int {
	out := make(map[string]int, len(r.hp))
	for k, v := range r.hp {
		out[k] = v
	}
	return out
}

func (r *Room) winsSnapshot() map[string]int {
	out := make(map[string]int, len(r.roundWins))
	for k, v := range r.roundWins {
		out[k] = v
	}
	return out
}

func reconnectGrace() time.Duration {
	return time.Duration(params.VeloTypeConfig().ReconnectGraceMs) * time.Millisecond
}

func submitGrace() time.Duration {
	return time.Duration(params.VeloTypeConfig().SubmitGraceMs) * time.Millisecond
}
