package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/auth"
	"github.com/velotype/velotype/server/cache"
	"github.com/velotype/velotype/server/match"
	"github.com/velotype/velotype/server/matchmaking"
	"github.com/velotype/velotype/server/wire"
	"github.com/velotype/velotype/testing/assert"
	"github.com/velotype/velotype/testing/require"
)

type testEnv struct {
	auth        *auth.Service
	match       *match.Service
	matchmaking *matchmaking.Service
	ws          *Service
	srv         *httptest.Server
}

// newTestEnv wires the full session stack against an in-memory match core
// and serves it from an httptest server. No database: queue ratings fall
// back to the placement base and finished matches skip persistence.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	authSvc, err := auth.NewService(context.Background(), &auth.Config{
		TokenSecret: []byte("ws-test-secret"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, authSvc.Stop()) })

	texts, err := cache.NewTextCache()
	require.NoError(t, err)
	matchSvc := match.NewService(context.Background(), &match.ServiceConfig{Texts: texts})
	t.Cleanup(func() { require.NoError(t, matchSvc.Stop()) })

	mm := matchmaking.NewService(context.Background(), &matchmaking.ServiceConfig{Match: matchSvc})
	t.Cleanup(func() { require.NoError(t, mm.Stop()) })

	svc := NewService(context.Background(), &Config{
		Auth:        authSvc,
		Match:       matchSvc,
		Matchmaking: mm,
	})
	t.Cleanup(func() { require.NoError(t, svc.Stop()) })

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{auth: authSvc, match: matchSvc, matchmaking: mm, ws: svc, srv: srv}
}

func dial(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func issueToken(t *testing.T, env *testEnv, userID, username string) string {
	t.Helper()
	token, _, err := env.auth.Issue(userID, username, false)
	require.NoError(t, err)
	return token
}

func sendFrame(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	frame := &wire.Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		frame.Data = data
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) *wire.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	frame := &wire.Envelope{}
	require.NoError(t, conn.ReadJSON(frame))
	return frame
}

// awaitFrame reads until a frame of the wanted type arrives, skipping
// interleaved traffic.
func awaitFrame(t *testing.T, conn *websocket.Conn, msgType string) *wire.Envelope {
	t.Helper()
	for i := 0; i < 64; i++ {
		frame := readFrame(t, conn)
		if frame.Type == msgType {
			return frame
		}
	}
	t.Fatalf("frame %q never arrived", msgType)
	return nil
}

// awaitClose reads until the peer closes the socket and returns the close
// frame it sent.
func awaitClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < 16; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.Equal(t, true, ok, "expected a close frame, got %v", err)
			return closeErr
		}
	}
	t.Fatal("connection never closed")
	return nil
}

func decodeInto(t *testing.T, frame *wire.Envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(frame.Data, dst))
}

func expectError(t *testing.T, conn *websocket.Conn, message string) {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, wire.MsgError, frame.Type)
	msg := &wire.ErrorMessage{}
	decodeInto(t, frame, msg)
	assert.Equal(t, message, msg.Message)
}

func TestSession_WelcomeGreetsFirst(t *testing.T) {
	env := newTestEnv(t)
	before := time.Now().UnixMilli()
	conn := dial(t, env)

	frame := readFrame(t, conn)
	require.Equal(t, wire.MsgWelcome, frame.Type)
	welcome := &wire.Welcome{}
	decodeInto(t, frame, welcome)
	after := time.Now().UnixMilli()
	assert.Equal(t, true, welcome.ServerTime >= before && welcome.ServerTime <= after)
}

func TestSession_JoinMustComeFirst(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)
	awaitFrame(t, conn, wire.MsgWelcome)

	sendFrame(t, conn, wire.MsgPing, &wire.Ping{ClientTs: 1})
	expectError(t, conn, "invalid payload")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	expectError(t, conn, "invalid payload")

	// Protocol errors before the join are inline; the socket survives them.
	sendFrame(t, conn, wire.MsgProgress, &wire.Progress{ProgressIndex: 3})
	expectError(t, conn, "invalid payload")
}

func TestSession_BadTokenClosesSocket(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)
	awaitFrame(t, conn, wire.MsgWelcome)

	sendFrame(t, conn, wire.MsgJoin, &wire.Join{Token: "garbage"})
	expectError(t, conn, "unauthorized")

	closeErr := awaitClose(t, conn)
	assert.Equal(t, wire.ClosePolicy, closeErr.Code)
	assert.Equal(t, "unauthorized", closeErr.Text)
}

func TestSession_QueueJoinAndLeave(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)
	awaitFrame(t, conn, wire.MsgWelcome)

	sendFrame(t, conn, wire.MsgJoin, &wire.Join{Token: issueToken(t, env, "user-a", "alice")})
	frame := awaitFrame(t, conn, wire.MsgQueued)
	queued := &wire.Queued{}
	decodeInto(t, frame, queued)
	assert.Equal(t, params.VeloTypeConfig().BasePlacementRating, queued.Rating)
	assert.Equal(t, true, queued.EnqueuedAt > 0)

	// Match frames need a room binding, which the queue is not.
	sendFrame(t, conn, wire.MsgProgress, &wire.Progress{ProgressIndex: 1})
	expectError(t, conn, "invalid payload")

	sendFrame(t, conn, wire.MsgLeave, nil)
	// The leave is unacked; a second one proves the first emptied the slot.
	sendFrame(t, conn, wire.MsgLeave, nil)
	expectError(t, conn, "invalid payload")
}

func TestSession_SecondJoinCannotSwitchUser(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)
	awaitFrame(t, conn, wire.MsgWelcome)

	sendFrame(t, conn, wire.MsgJoin, &wire.Join{Token: issueToken(t, env, "user-a", "alice")})
	awaitFrame(t, conn, wire.MsgQueued)

	sendFrame(t, conn, wire.MsgJoin, &wire.Join{Token: issueToken(t, env, "user-b", "bob")})
	expectError(t, conn, "invalid payload")

	// The original principal keeps the socket.
	sendFrame(t, conn, wire.MsgPing, &wire.Ping{ClientTs: 7})
	frame := awaitFrame(t, conn, wire.MsgPong)
	pong := &wire.Pong{}
	decodeInto(t, frame, pong)
	assert.Equal(t, int64(7), pong.ClientTs)
	assert.Equal(t, true, pong.ServerTs > 0)
}

func TestSession_JoinUnknownOrForeignMatch(t *testing.T) {
	env := newTestEnv(t)

	conn := dial(t, env)
	awaitFrame(t, conn, wire.MsgWelcome)
	sendFrame(t, conn, wire.MsgJoin, &wire.Join{MatchID: "missing", Token: issueToken(t, env, "user-a", "alice")})
	expectError(t, conn, "not in match")

	// The join authenticated even though the bind failed.
	sendFrame(t, conn, wire.MsgPing, &wire.Ping{ClientTs: 1})
	awaitFrame(t, conn, wire.MsgPong)

	players := [2]match.PlayerInfo{
		{UserID: "user-a", Username: "alice"},
		{UserID: "user-b", Username: "bob"},
	}
	_, err := env.match.CreateRoom(match.NewConfig("m-roster", "seed-roster", players, time.Now()))
	require.NoError(t, err)

	stranger := dial(t, env)
	awaitFrame(t, stranger, wire.MsgWelcome)
	sendFrame(t, stranger, wire.MsgJoin, &wire.Join{MatchID: "m-roster", Token: issueToken(t, env, "user-z", "zed")})
	expectError(t, stranger, "not in match")
}

func TestSession_SecondSocketSupersedesFirst(t *testing.T) {
	env := newTestEnv(t)
	players := [2]match.PlayerInfo{
		{UserID: "user-a", Username: "alice"},
		{UserID: "user-b", Username: "bob"},
	}
	_, err := env.match.CreateRoom(match.NewConfig("m-super", "seed-super", players, time.Now()))
	require.NoError(t, err)
	token := issueToken(t, env, "user-a", "alice")

	first := dial(t, env)
	awaitFrame(t, first, wire.MsgWelcome)
	sendFrame(t, first, wire.MsgJoin, &wire.Join{MatchID: "m-super", Token: token})
	awaitFrame(t, first, wire.MsgJoined)

	second := dial(t, env)
	awaitFrame(t, second, wire.MsgWelcome)
	sendFrame(t, second, wire.MsgJoin, &wire.Join{MatchID: "m-super", Token: token})
	awaitFrame(t, second, wire.MsgJoined)

	closeErr := awaitClose(t, first)
	assert.Equal(t, wire.CloseNormal, closeErr.Code)
	assert.Equal(t, "session superseded", closeErr.Text)
}

// TestSession_QueueToMatchEndToEnd drives two sockets through the full flow:
// queue join, pairing, match join, and a forfeit finishing the match.
func TestSession_QueueToMatchEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.matchmaking.Start()

	connA := dial(t, env)
	awaitFrame(t, connA, wire.MsgWelcome)
	sendFrame(t, connA, wire.MsgJoin, &wire.Join{Token: issueToken(t, env, "user-a", "alice")})
	awaitFrame(t, connA, wire.MsgQueued)

	connB := dial(t, env)
	awaitFrame(t, connB, wire.MsgWelcome)
	sendFrame(t, connB, wire.MsgJoin, &wire.Join{Token: issueToken(t, env, "user-b", "bob")})
	awaitFrame(t, connB, wire.MsgQueued)

	foundA := &wire.MatchFound{}
	decodeInto(t, awaitFrame(t, connA, wire.MsgMatchFound), foundA)
	foundB := &wire.MatchFound{}
	decodeInto(t, awaitFrame(t, connB, wire.MsgMatchFound), foundB)

	require.NotEqual(t, "", foundA.MatchID)
	assert.Equal(t, foundA.MatchID, foundB.MatchID)
	assert.Equal(t, foundA.Seed, foundB.Seed)
	assert.Equal(t, "ranked", foundA.Mode)
	require.Equal(t, 2, len(foundA.Players))
	seen := map[string]string{}
	for _, p := range foundA.Players {
		seen[p.UserID] = p.Username
	}
	assert.Equal(t, "alice", seen["user-a"])
	assert.Equal(t, "bob", seen["user-b"])
	// Neither player has a ranked rating yet, so no ratings are published.
	assert.Equal(t, 0, len(foundA.Ratings))
	assert.Equal(t, true, foundA.StartAt > time.Now().UnixMilli())

	sendFrame(t, connA, wire.MsgJoin, &wire.Join{MatchID: foundA.MatchID, Token: issueToken(t, env, "user-a", "alice")})
	joined := &wire.Joined{}
	decodeInto(t, awaitFrame(t, connA, wire.MsgJoined), joined)
	assert.Equal(t, foundA.MatchID, joined.MatchID)
	assert.Equal(t, "user-a", joined.UserID)

	sendFrame(t, connB, wire.MsgJoin, &wire.Join{MatchID: foundB.MatchID, Token: issueToken(t, env, "user-b", "bob")})
	awaitFrame(t, connB, wire.MsgJoined)

	opp := &wire.OpponentJoined{}
	decodeInto(t, awaitFrame(t, connA, wire.MsgOpponentJoined), opp)
	assert.Equal(t, "user-b", opp.UserID)
	assert.Equal(t, "bob", opp.Username)

	// The session validates vote values before the room sees them.
	sendFrame(t, connB, wire.MsgDrawVote, &wire.DrawVote{Vote: "maybe"})
	expectError(t, connB, "invalid payload")

	sendFrame(t, connB, wire.MsgForfeit, nil)
	complete := &wire.MatchComplete{}
	decodeInto(t, awaitFrame(t, connA, wire.MsgMatchComplete), complete)
	assert.Equal(t, foundA.MatchID, complete.MatchID)
	assert.Equal(t, "forfeit", complete.EndReason)
	require.NotNil(t, complete.WinnerID)
	assert.Equal(t, "user-a", *complete.WinnerID)
	assert.Equal(t, "user-b", complete.Forfeited)
	decodeInto(t, awaitFrame(t, connB, wire.MsgMatchComplete), complete)
	assert.Equal(t, "user-b", complete.Forfeited)
}

// TestSession_RateLimitShedsBurstTraffic floods one socket and checks the
// limiter drops the tail of the burst without dropping the session.
func TestSession_RateLimitShedsBurstTraffic(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)
	awaitFrame(t, conn, wire.MsgWelcome)
	sendFrame(t, conn, wire.MsgJoin, &wire.Join{Token: issueToken(t, env, "user-a", "alice")})
	awaitFrame(t, conn, wire.MsgQueued)

	const burst = 60
	for i := 0; i < burst; i++ {
		sendFrame(t, conn, wire.MsgPing, &wire.Ping{ClientTs: int64(i)})
	}
	pongs, limited := 0, 0
	for i := 0; i < burst; i++ {
		frame := readFrame(t, conn)
		switch frame.Type {
		case wire.MsgPong:
			pongs++
		case wire.MsgError:
			msg := &wire.ErrorMessage{}
			decodeInto(t, frame, msg)
			require.Equal(t, "rate limited", msg.Message)
			limited++
		default:
			t.Fatalf("unexpected frame %q", frame.Type)
		}
	}
	require.Equal(t, burst, pongs+limited)
	assert.Equal(t, true, pongs >= 25, "burst capacity should admit the head of the burst, got %d pongs", pongs)
	assert.Equal(t, true, limited >= 5, "refill rate should reject the tail of the burst, got %d rejections", limited)

	// The bucket drains over time and the session keeps working.
	time.Sleep(500 * time.Millisecond)
	sendFrame(t, conn, wire.MsgPing, &wire.Ping{ClientTs: 99})
	pong := &wire.Pong{}
	decodeInto(t, awaitFrame(t, conn, wire.MsgPong), pong)
	assert.Equal(t, int64(99), pong.ClientTs)
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no allow list admits all", allowed: nil, origin: "https://anywhere.example", want: true},
		{name: "no origin header admits non-browser clients", allowed: []string{"https://velotype.app"}, origin: "", want: true},
		{name: "star entry admits all", allowed: []string{"*"}, origin: "https://anywhere.example", want: true},
		{name: "exact match is case-insensitive", allowed: []string{"https://VeloType.app"}, origin: "https://velotype.app", want: true},
		{name: "second entry matches", allowed: []string{"https://a.example", "https://b.example"}, origin: "https://b.example", want: true},
		{name: "wildcard subdomain matches", allowed: []string{"https://*.velotype.app"}, origin: "https://eu.velotype.app", want: true},
		{name: "wildcard requires the subdomain", allowed: []string{"https://*.velotype.app"}, origin: "https://velotype.app", want: false},
		{name: "wildcard suffix is anchored", allowed: []string{"https://*.velotype.app"}, origin: "https://eu.velotype.app.evil.example", want: false},
		{name: "scheme must match", allowed: []string{"https://velotype.app"}, origin: "http://velotype.app", want: false},
		{name: "unlisted origin rejected", allowed: []string{"https://velotype.app"}, origin: "https://evil.example", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, originAllowed(tc.allowed, tc.origin))
		})
	}
}
