package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/cache"
	"github.com/velotype/velotype/server/wire"
	"github.com/velotype/velotype/testing/assert"
	"github.com/velotype/velotype/testing/require"
)

const (
	userA = "user-a"
	userB = "user-b"
)

type sentFrame struct {
	msgType string
	payload interface{}
}

// fakeClient records everything the room sends. Send runs on the room's
// owner goroutine, so access is locked.
type fakeClient struct {
	id   string
	name string

	mu        sync.Mutex
	sent      []sentFrame
	closed    bool
	closeCode int
	closeMsg  string
}

func newFakeClient(id, name string) *fakeClient {
	return &fakeClient{id: id, name: name}
}

func (c *fakeClient) UserID() string   { return c.id }
func (c *fakeClient) Username() string { return c.name }

func (c *fakeClient) Send(msgType string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentFrame{msgType: msgType, payload: payload})
}

func (c *fakeClient) CloseWithCode(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	c.closeMsg = reason
}

func (c *fakeClient) count(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.sent {
		if f.msgType == msgType {
			n++
		}
	}
	return n
}

// waitFrame blocks until the nth frame of msgType arrives and returns its
// payload.
func (c *fakeClient) waitFrame(t *testing.T, msgType string, n int) interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		seen := 0
		for _, f := range c.sent {
			if f.msgType != msgType {
				continue
			}
			seen++
			if seen == n {
				payload := f.payload
				c.mu.Unlock()
				return payload
			}
		}
		c.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("frame %q (occurrence %d) never arrived", msgType, n)
	return nil
}

func useMinimalConfig(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	params.OverrideVeloTypeConfig(params.MinimalTestConfig())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	texts, err := cache.NewTextCache()
	require.NoError(t, err)
	svc := NewService(context.Background(), &ServiceConfig{Texts: texts})
	t.Cleanup(func() {
		require.NoError(t, svc.Stop())
	})
	return svc
}

func duelPlayers() [2]PlayerInfo {
	return [2]PlayerInfo{
		{UserID: userA, Username: "alice"},
		{UserID: userB, Username: "bob"},
	}
}

func startDuel(t *testing.T, svc *Service, mutate func(*Config)) (*Room, *fakeClient, *fakeClient) {
	t.Helper()
	cfg := NewConfig("match-1", "seed-1", duelPlayers(), time.Now())
	if mutate != nil {
		mutate(cfg)
	}
	room, err := svc.CreateRoom(cfg)
	require.NoError(t, err)
	a, b := newFakeClient(userA, "alice"), newFakeClient(userB, "bob")
	room.Join(a)
	room.Join(b)
	a.waitFrame(t, wire.MsgJoined, 1)
	b.waitFrame(t, wire.MsgJoined, 1)
	return room, a, b
}

// waitTyping blocks until the room is accepting submissions for the given
// round.
func waitTyping(t *testing.T, r *Room, round int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		type roomState struct {
			phase phase
			round int
		}
		state := make(chan roomState, 1)
		r.post(func() { state <- roomState{r.phase, r.currentRound} })
		select {
		case s := <-state:
			if s.phase == phaseTyping && s.round == round {
				return
			}
		case <-r.done:
			t.Fatalf("room completed before round %d went live", round)
		case <-time.After(time.Second):
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("round %d never reached the typing phase", round)
}

func waitDone(t *testing.T, r *Room) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("room never completed")
	}
}

// submitRound submits either the full correct text or an empty string.
func submitRound(r *Room, svc *Service, uid string, round int, correct bool) {
	typed := ""
	if correct {
		typed = svc.roundText(r.cfg, round)
	}
	r.Submit(uid, &wire.Result{Typed: typed, Samples: []int{len(typed)}})
}

func TestRoom_StrangerRejected(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	_, err := svc.CreateRoom(NewConfig("match-1", "seed-1", duelPlayers(), time.Now()))
	require.NoError(t, err)
	room, ok := svc.Room("match-1")
	require.Equal(t, true, ok)

	outsider := newFakeClient("user-c", "carol")
	room.Join(outsider)
	payload := outsider.waitFrame(t, wire.MsgError, 1)
	msg, ok := payload.(*wire.ErrorMessage)
	require.Equal(t, true, ok)
	assert.Equal(t, "not in match", msg.Message)
	assert.Equal(t, 0, outsider.count(wire.MsgJoined))
}

func TestRoom_JoinHandshake(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	_, a, b := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	joined, ok := a.waitFrame(t, wire.MsgJoined, 1).(*wire.Joined)
	require.Equal(t, true, ok)
	assert.Equal(t, "match-1", joined.MatchID)
	assert.Equal(t, userA, joined.UserID)

	opp, ok := a.waitFrame(t, wire.MsgOpponentJoined, 1).(*wire.OpponentJoined)
	require.Equal(t, true, ok)
	assert.Equal(t, userB, opp.UserID)
	assert.Equal(t, "bob", opp.Username)
	assert.Equal(t, 1, b.count(wire.MsgOpponentJoined))
}

func TestRoom_KnockoutAfterOneSidedRounds(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, nil)

	wantHp := []int{65, 30, 0}
	for round := 1; round <= 3; round++ {
		waitTyping(t, room, round)
		submitRound(room, svc, userA, round, true)
		submitRound(room, svc, userB, round, false)
		end, ok := a.waitFrame(t, wire.MsgRoundEnd, round).(*wire.RoundEnd)
		require.Equal(t, true, ok)
		assert.Equal(t, round, end.RoundNumber)
		assert.Equal(t, userA, end.Winner)
		assert.Equal(t, 100.0, end.Scores[userA])
		assert.Equal(t, 0.0, end.Scores[userB])
		assert.Equal(t, 35, end.Damage[userA])
		assert.Equal(t, 100, end.Hp[userA])
		assert.Equal(t, wantHp[round-1], end.Hp[userB])
	}

	complete, ok := b.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "knockout", complete.EndReason)
	require.NotNil(t, complete.WinnerID)
	assert.Equal(t, userA, *complete.WinnerID)
	assert.Equal(t, 3, complete.RoundWins[userA])
	assert.Equal(t, 0, complete.Hp[userB])

	waitDone(t, room)
	_, live := svc.Room("match-1")
	assert.Equal(t, false, live)
}

func TestRoom_EvenRoundIsDrawWithoutDamage(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, _ := startDuel(t, svc, nil)

	waitTyping(t, room, 1)
	submitRound(room, svc, userA, 1, true)
	submitRound(room, svc, userB, 1, true)

	end, ok := a.waitFrame(t, wire.MsgRoundEnd, 1).(*wire.RoundEnd)
	require.Equal(t, true, ok)
	assert.Equal(t, "draw", end.Winner)
	assert.Equal(t, end.Scores[userA], end.Scores[userB])
	assert.Equal(t, 0, end.Damage[userA])
	assert.Equal(t, 0, end.Damage[userB])
	assert.Equal(t, 100, end.Hp[userA])
	assert.Equal(t, 100, end.Hp[userB])
	assert.Equal(t, 0, end.RoundWins[userA])
	assert.Equal(t, false, end.OvertimeActive)
}

func TestRoom_SubmissionGuards(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.BreakSeconds = 2 })

	waitTyping(t, room, 1)
	// Votes are only valid inside an open draw window.
	room.Vote(userA, wire.VoteDraw)
	msg, ok := a.waitFrame(t, wire.MsgError, 1).(*wire.ErrorMessage)
	require.Equal(t, true, ok)
	assert.Equal(t, "invalid payload", msg.Message)

	submitRound(room, svc, userA, 1, true)
	a.waitFrame(t, wire.MsgResultReceived, 1)
	submitRound(room, svc, userA, 1, true)
	msg, ok = a.waitFrame(t, wire.MsgError, 2).(*wire.ErrorMessage)
	require.Equal(t, true, ok)
	assert.Equal(t, "already submitted", msg.Message)

	// Opponent notification of the first submission, not the duplicate.
	b.waitFrame(t, wire.MsgOpponentFinished, 1)
	assert.Equal(t, 1, b.count(wire.MsgOpponentFinished))

	submitRound(room, svc, userB, 1, true)
	a.waitFrame(t, wire.MsgRoundEnd, 1)
	// The room is on break now; late results are refused.
	submitRound(room, svc, userB, 1, true)
	msg, ok = b.waitFrame(t, wire.MsgError, 1).(*wire.ErrorMessage)
	require.Equal(t, true, ok)
	assert.Equal(t, "submission past deadline", msg.Message)
}

func TestRoom_ProgressForwarded(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, _, b := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	waitTyping(t, room, 1)
	room.Progress(userA, &wire.Progress{ProgressIndex: 17, TypedLength: 19, MistakesCount: 2, ElapsedMs: 450})
	fwd, ok := b.waitFrame(t, wire.MsgOpponentProgress, 1).(*wire.OpponentProgress)
	require.Equal(t, true, ok)
	assert.Equal(t, userA, fwd.UserID)
	assert.Equal(t, 17, fwd.ProgressIndex)
	assert.Equal(t, 19, fwd.TypedLength)
	assert.Equal(t, 2, fwd.MistakesCount)
}

func TestRoom_SupersededSocketClosed(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	replacement := newFakeClient(userA, "alice")
	room.Join(replacement)
	replacement.waitFrame(t, wire.MsgJoined, 1)

	a.mu.Lock()
	closed, code, reason := a.closed, a.closeCode, a.closeMsg
	a.mu.Unlock()
	assert.Equal(t, true, closed)
	assert.Equal(t, wire.CloseNormal, code)
	assert.Equal(t, "session superseded", reason)

	// The old socket's disconnect must not start a grace countdown.
	room.Disconnect(a)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, b.count(wire.MsgOpponentLeft))
}

func TestRoom_ReconnectRecovery(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	waitTyping(t, room, 1)
	room.Progress(userB, &wire.Progress{ProgressIndex: 12, TypedLength: 12, ElapsedMs: 300})
	submitRound(room, svc, userB, 1, true)
	b.waitFrame(t, wire.MsgResultReceived, 1)

	room.Disconnect(a)
	b.waitFrame(t, wire.MsgOpponentLeft, 1)

	rejoined := newFakeClient(userA, "alice")
	room.Join(rejoined)
	rec, ok := rejoined.waitFrame(t, wire.MsgStateRecovery, 1).(*wire.StateRecovery)
	require.Equal(t, true, ok)
	assert.Equal(t, "match-1", rec.MatchID)
	assert.Equal(t, "seed-1", rec.Seed)
	assert.Equal(t, 1, rec.RoundNumber)
	assert.Equal(t, 30, rec.RoundTimeSeconds)
	assert.Equal(t, 100, rec.Hp[userA])
	assert.Equal(t, true, rec.OpponentSubmitted)
	require.NotNil(t, rec.OpponentProgress)
	assert.Equal(t, 12, rec.OpponentProgress.ProgressIndex)

	// The opponent sees the leave and the rejoin.
	b.waitFrame(t, wire.MsgOpponentJoined, 2)
}

func TestRoom_DisconnectBeyondGraceForfeits(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	waitTyping(t, room, 1)
	room.Disconnect(a)
	left, ok := b.waitFrame(t, wire.MsgOpponentLeft, 1).(*wire.OpponentLeft)
	require.Equal(t, true, ok)
	assert.Equal(t, userA, left.UserID)
	assert.Equal(t, uint64(300), left.GraceMs)

	complete, ok := b.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "disconnect", complete.EndReason)
	require.NotNil(t, complete.WinnerID)
	assert.Equal(t, userB, *complete.WinnerID)
	assert.Equal(t, userA, complete.Forfeited)
	assert.Equal(t, 0, complete.Hp[userA])
	waitDone(t, room)
}

func TestRoom_RejoinWithinGraceKeepsMatchAlive(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	waitTyping(t, room, 1)
	room.Disconnect(a)
	b.waitFrame(t, wire.MsgOpponentLeft, 1)

	rejoined := newFakeClient(userA, "alice")
	room.Join(rejoined)
	rejoined.waitFrame(t, wire.MsgStateRecovery, 1)

	// Let the original grace deadline pass; the rejoin must have voided it.
	time.Sleep(450 * time.Millisecond)
	assert.Equal(t, 0, b.count(wire.MsgMatchComplete))
	_, live := svc.Room("match-1")
	assert.Equal(t, true, live)
}

func TestRoom_ForfeitEndsMatch(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, _ := startDuel(t, svc, func(c *Config) { c.RoundTimeSeconds = 30 })

	waitTyping(t, room, 1)
	room.Forfeit(userB)

	complete, ok := a.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "forfeit", complete.EndReason)
	require.NotNil(t, complete.WinnerID)
	assert.Equal(t, userA, *complete.WinnerID)
	assert.Equal(t, userB, complete.Forfeited)
	assert.Equal(t, 0, complete.Hp[userB])
	assert.Equal(t, 100, complete.Hp[userA])
	waitDone(t, room)
}

func TestRoom_NoShowResolvesAtLobbyDeadline(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, err := svc.CreateRoom(NewConfig("match-1", "seed-1", duelPlayers(), time.Now()))
	require.NoError(t, err)

	a := newFakeClient(userA, "alice")
	room.Join(a)
	a.waitFrame(t, wire.MsgJoined, 1)

	complete, ok := a.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "no_show", complete.EndReason)
	require.NotNil(t, complete.WinnerID)
	assert.Equal(t, userA, *complete.WinnerID)
	assert.Equal(t, userB, complete.Forfeited)
	assert.Equal(t, 0, complete.Hp[userB])
	waitDone(t, room)
}

func TestRoom_AbandonedWhenNobodyJoins(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, err := svc.CreateRoom(NewConfig("match-1", "seed-1", duelPlayers(), time.Now()))
	require.NoError(t, err)

	waitDone(t, room)
	_, live := svc.Room("match-1")
	assert.Equal(t, false, live)
}

func TestRoom_HpTiebreakAtRoundLimit(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, _ := startDuel(t, svc, nil)

	// Round one goes to alice; the remaining rounds are even.
	for round := 1; round <= 6; round++ {
		waitTyping(t, room, round)
		submitRound(room, svc, userA, round, true)
		submitRound(room, svc, userB, round, round > 1)
		a.waitFrame(t, wire.MsgRoundEnd, round)
	}

	complete, ok := a.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "rounds", complete.EndReason)
	require.NotNil(t, complete.WinnerID)
	assert.Equal(t, userA, *complete.WinnerID)
	assert.Equal(t, 100, complete.Hp[userA])
	assert.Equal(t, 65, complete.Hp[userB])
	assert.Equal(t, 1, complete.RoundWins[userA])
	waitDone(t, room)
}

func TestRoom_OvertimeDrawWindowAgreedDraw(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.MaxRounds = 10 })

	for round := 1; round <= 8; round++ {
		waitTyping(t, room, round)
		submitRound(room, svc, userA, round, true)
		submitRound(room, svc, userB, round, true)
		end, ok := a.waitFrame(t, wire.MsgRoundEnd, round).(*wire.RoundEnd)
		require.Equal(t, true, ok)
		assert.Equal(t, "draw", end.Winner)
		assert.Equal(t, round >= 6, end.OvertimeActive, "round %d", round)
		// The first window opens two rounds into overtime, never earlier.
		assert.Equal(t, round == 8, end.DrawWindowOpen, "round %d", round)
		if round == 8 {
			assert.Equal(t, true, end.DrawWindowClosesAt > 0)
			assert.Equal(t, end.DrawWindowClosesAt, end.NextRoundStartAt)
		}
	}

	room.Vote(userA, wire.VoteDraw)
	room.Vote(userB, wire.VoteDraw)

	complete, ok := b.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "agreed_draw", complete.EndReason)
	assert.Equal(t, (*string)(nil), complete.WinnerID)
	assert.Equal(t, 100, complete.Hp[userA])
	assert.Equal(t, 100, complete.Hp[userB])
	waitDone(t, room)
}

func TestRoom_ContinueVoteClosesWindowAndMatchRunsToLimit(t *testing.T) {
	useMinimalConfig(t)
	svc := newTestService(t)
	room, a, b := startDuel(t, svc, func(c *Config) { c.MaxRounds = 10 })

	for round := 1; round <= 8; round++ {
		waitTyping(t, room, round)
		submitRound(room, svc, userA, round, true)
		submitRound(room, svc, userB, round, true)
		a.waitFrame(t, wire.MsgRoundEnd, round)
	}

	// One continue vote kills the window; a later draw vote is refused and
	// the published schedule stands.
	room.Vote(userA, wire.VoteContinue)
	room.Vote(userB, wire.VoteDraw)
	msg, ok := b.waitFrame(t, wire.MsgError, 1).(*wire.ErrorMessage)
	require.Equal(t, true, ok)
	assert.Equal(t, "invalid payload", msg.Message)

	for round := 9; round <= 10; round++ {
		waitTyping(t, room, round)
		submitRound(room, svc, userA, round, true)
		submitRound(room, svc, userB, round, true)
		a.waitFrame(t, wire.MsgRoundEnd, round)
	}

	complete, ok := a.waitFrame(t, wire.MsgMatchComplete, 1).(*wire.MatchComplete)
	require.Equal(t, true, ok)
	assert.Equal(t, "draw", complete.EndReason)
	assert.Equal(t, (*string)(nil), complete.WinnerID)
	waitDone(t, room)
}
