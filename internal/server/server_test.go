package server_test

import (
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oliynykmax/irc-hive/internal/config"
	"github.com/oliynykmax/irc-hive/internal/server"
)

// testClient is a minimal IRC client for exercising the server over a
// real TCP connection
type testClient struct {
	t    *testing.T
	conn net.Conn
	tp   *textproto.Conn
}

func startServer(t *testing.T, password string) *server.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.Password = password

	srv := server.New(cfg)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

func dial(t *testing.T, srv *server.Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)

	c := &testClient{t: t, conn: conn, tp: textproto.NewConn(conn)}
	t.Cleanup(func() { conn.Close() })
	return c
}

// register dials, registers a nickname and drains the welcome burst
func register(t *testing.T, srv *server.Server, nick string) *testClient {
	t.Helper()

	c := dial(t, srv)
	c.send("NICK " + nick)
	c.send(fmt.Sprintf("USER %s localhost irc :%s", nick, nick))
	c.expect(" 004 ")
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	require.NoError(c.t, c.tp.PrintfLine("%s", line))
}

// expect reads lines until one contains the substring, failing the test
// when the deadline passes first. Matched and skipped lines are consumed.
func (c *testClient) expect(substr string) string {
	c.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		line, err := c.tp.ReadLine()
		if err != nil {
			continue
		}
		if strings.Contains(line, substr) {
			c.conn.SetReadDeadline(time.Time{})
			return line
		}
	}
	c.conn.SetReadDeadline(time.Time{})
	c.t.Fatalf("timed out waiting for line containing %q", substr)
	return ""
}

// expectNone asserts that no line containing the substring arrives within
// a short window
func (c *testClient) expectNone(substr string) {
	c.t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		line, err := c.tp.ReadLine()
		if err != nil {
			continue
		}
		if strings.Contains(line, substr) {
			c.conn.SetReadDeadline(time.Time{})
			c.t.Fatalf("unexpected line containing %q: %s", substr, line)
		}
	}
	c.conn.SetReadDeadline(time.Time{})
}

// drain discards whatever is pending on the connection
func (c *testClient) drain() {
	c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	for {
		if _, err := c.tp.ReadLine(); err != nil {
			break
		}
	}
	c.conn.SetReadDeadline(time.Time{})
}

func TestRegistrationWelcomeBurst(t *testing.T) {
	srv := startServer(t, "")
	c := dial(t, srv)

	c.send("NICK alice")
	c.send("USER alice localhost irc :Alice")

	c.expect(" 001 alice ")
	c.expect(" 002 alice ")
	c.expect(" 003 alice ")
	c.expect(" 004 alice ")
}

func TestNicknameCollision(t *testing.T) {
	srv := startServer(t, "")
	register(t, srv, "alice")

	c := dial(t, srv)
	c.send("NICK alice")
	c.expect(" 433 * alice :Nickname is already in use")

	// The connection is still usable under a different nickname
	c.send("NICK bob")
	c.send("USER bob localhost irc :Bob")
	c.expect(" 001 bob ")
}

func TestPasswordGate(t *testing.T) {
	srv := startServer(t, "sekrit")

	// Wrong password closes the connection
	bad := dial(t, srv)
	bad.send("PASS nope")
	bad.expect(" 464 ")

	// Commands before PASS are rejected
	early := dial(t, srv)
	early.send("NICK eve")
	early.expect(" 464 ")

	// Correct password lets registration proceed
	good := dial(t, srv)
	good.send("PASS sekrit")
	good.send("NICK alice")
	good.send("USER alice localhost irc :Alice")
	good.expect(" 001 alice ")
}

func TestJoinTopicAndNames(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	alice.expect(" 331 alice #chat :No topic is set")
	alice.expect(" 353 alice = #chat @alice")
	alice.expect(" 366 alice #chat ")
	alice.expect(":alice!alice@")

	bob.send("JOIN #chat")
	bob.expect(" 353 bob = #chat :@alice bob")
	alice.expect("JOIN :#chat")

	alice.send("TOPIC #chat :rainy day plans")
	bob.expect("TOPIC #chat :rainy day plans")

	// A later joiner sees the topic instead of 331
	carol := register(t, srv, "carol")
	carol.send("JOIN #chat")
	carol.expect(" 332 carol #chat :rainy day plans")
}

func TestPrivmsgChannelAndNick(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	alice.send("PRIVMSG #chat :hello channel")
	bob.expect("PRIVMSG #chat :hello channel")
	// The sender never gets its own message back
	alice.expectNone("hello channel")

	bob.send("PRIVMSG alice :psst")
	alice.expect("PRIVMSG alice :psst")

	bob.send("PRIVMSG ghost :anyone there")
	bob.expect(" 401 bob ghost ")

	stranger := register(t, srv, "dave")
	stranger.send("PRIVMSG #chat :let me in")
	stranger.expect(" 442 dave #chat ")
}

func TestKick(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	// A regular member cannot kick
	bob.send("KICK #chat alice :coup")
	bob.expect(" 482 bob #chat ")

	alice.send("KICK #chat bob :behave")
	bob.expect("KICK #chat bob :behave")
	alice.expect("KICK #chat bob :behave")

	// Bob is really gone
	alice.send("PRIVMSG #chat :quiet now")
	bob.expectNone("quiet now")
	bob.send("PRIVMSG #chat :still here?")
	bob.expect(" 442 bob #chat ")
}

func TestInviteOnlyChannel(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #club")
	alice.drain()
	alice.send("MODE #club +i")
	alice.drain()

	bob.send("JOIN #club")
	bob.expect(" 473 bob #club :Cannot join channel (+i)")

	alice.send("INVITE bob #club")
	alice.expect(" 341 alice bob #club ")
	bob.expect("INVITE bob :#club")

	bob.send("JOIN #club")
	bob.expect(" 366 bob #club ")

	// The invite was consumed, so leaving and rejoining is gated again
	bob.send("PART #club")
	bob.drain()
	bob.send("JOIN #club")
	bob.expect(" 473 bob #club :Cannot join channel (+i)")
}

func TestChannelKey(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #vault")
	alice.drain()
	alice.send("MODE #vault +k sekrit")
	alice.drain()

	bob.send("JOIN #vault wrong")
	bob.expect(" 475 bob #vault :Cannot join channel (+k)")

	bob.send("JOIN #vault sekrit")
	bob.expect(" 366 bob #vault ")
}

func TestModeRollback(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")

	alice.send("JOIN #chat")
	alice.drain()
	alice.send("MODE #chat +it")
	alice.expect("MODE #chat +it")

	// Promoting a non-member fails and must roll back the whole command
	alice.send("MODE #chat +lo 5 ghost")
	alice.expect(" 441 alice ghost #chat ")

	alice.send("MODE #chat")
	alice.expect(" 324 alice #chat +it")
}

func TestModeOperatorGrant(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	// Non-operators cannot change modes
	bob.send("MODE #chat +t")
	bob.expect(" 482 bob #chat ")

	alice.send("MODE #chat +o bob")
	bob.expect("MODE #chat +o bob")

	// Bob now holds operator privileges
	bob.send("MODE #chat +t")
	bob.expect("MODE #chat +t")
}

func TestTopicLock(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	// Without +t any member can set the topic
	bob.send("TOPIC #chat :set by bob")
	alice.expect("TOPIC #chat :set by bob")

	alice.send("MODE #chat +t")
	bob.drain()
	bob.send("TOPIC #chat :bob again")
	bob.expect(" 482 bob #chat ")
}

func TestPartDestroysEmptyChannel(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #brief")
	alice.drain()
	alice.send("MODE #brief +i")
	alice.drain()
	alice.send("PART #brief")
	alice.drain()

	// The channel was destroyed with its modes, so bob can recreate it
	bob.send("JOIN #brief")
	bob.expect(" 353 bob = #brief @bob")
}

func TestQuitBroadcastAndPromotion(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	alice.send("QUIT :off to bed")
	bob.expect("QUIT :off to bed")

	// Bob was promoted when the only operator left
	bob.send("MODE #chat +t")
	bob.expect("MODE #chat +t")
}

func TestNickChangeBroadcast(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	alice.send("NICK alicia")
	bob.expect(":alice!alice@")
	alice.expect("NICK :alicia")

	bob.send("PRIVMSG alicia :found you")
	alice.expect("PRIVMSG alicia :found you")
}

func TestWhoListsChannel(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	alice.send("JOIN #chat")
	bob.send("JOIN #chat")
	alice.drain()
	bob.drain()

	alice.send("WHO #chat")
	alice.expect(" 352 alice #chat bob ")
	alice.expect(" 352 alice #chat alice ")
	alice.expect(" 315 alice #chat :End of /WHO list")
}

func TestPingPong(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")

	alice.send("PING token123")
	alice.expect("PONG localhost token123")

	alice.send("PING")
	alice.expect(" 409 alice :No origin specified")
}

func TestCapNegotiation(t *testing.T) {
	srv := startServer(t, "")
	c := dial(t, srv)

	c.send("CAP LS 302")
	c.expect("CAP * LS :")

	c.send("CAP BOGUS")
	c.expect(" 410 ")

	// CAP before PASS must not trip the password gate
	srvPw := startServer(t, "sekrit")
	pc := dial(t, srvPw)
	pc.send("CAP LS 302")
	pc.expect("CAP * LS :")
}

func TestUnknownCommand(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")

	alice.send("WALLOPS everyone")
	alice.expect(" 421 alice WALLOPS :Unknown command")

	// The connection survives the unknown command
	alice.send("PING still-alive")
	alice.expect("PONG")
}

func TestOversizedLineDropped(t *testing.T) {
	srv := startServer(t, "")
	alice := register(t, srv, "alice")

	alice.send("PRIVMSG #nowhere :" + strings.Repeat("x", 600))
	alice.expectNone(" 442 ")

	alice.send("PING after")
	alice.expect("PONG")
}
