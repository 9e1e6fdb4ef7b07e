package session_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onuvuti/resonance/internal/bus"
	"github.com/onuvuti/resonance/internal/profile"
	"github.com/onuvuti/resonance/internal/registry"
	"github.com/onuvuti/resonance/internal/relay"
	"github.com/onuvuti/resonance/internal/session"
	"github.com/stretchr/testify/require"
)

// These tests run two full client sessions against an in-process relay:
// real websocket transport, real pairing, real payload forwarding.

func newRelay(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	relay.NewService(slog.Default(), registry.NewMemory()).Routes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newClient(t *testing.T, relayURL, room string, prof profile.Profile, name string) (*session.Session, *bus.Bus) {
	t.Helper()
	hub := bus.New(slog.Default())
	tr := session.NewWSTransport(slog.Default(), relayURL, 2, 50*time.Millisecond)
	sess := session.New(slog.Default(), hub, tr, room, prof, name)
	t.Cleanup(sess.Disconnect)
	return sess, hub
}

func waitForStatus(t *testing.T, sess *session.Session, want session.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.Status() == want
	}, 3*time.Second, 10*time.Millisecond, "session never reached %s", want)
}

func TestPairing_TwoSessionsConnectAndExchange(t *testing.T) {
	relayURL := newRelay(t)

	alice, _ := newClient(t, relayURL, "e2e-room", profile.New([]string{"blind"}), "Alice")
	bo, boBus := newClient(t, relayURL, "e2e-room", profile.New([]string{"deaf"}), "Bo")

	require.NoError(t, alice.StartMatching(context.Background()))
	require.NoError(t, bo.StartMatching(context.Background()))

	waitForStatus(t, alice, session.StatusConnected)
	waitForStatus(t, bo, session.StatusConnected)

	// Each side sees the other's profile, not its own.
	require.NotNil(t, alice.Peer())
	require.True(t, alice.Peer().Profile.IsDeaf())
	require.Equal(t, "Bo", alice.Peer().DisplayName)
	require.NotNil(t, bo.Peer())
	require.True(t, bo.Peer().Profile.IsBlind())

	peerSeen := make(chan bus.InteractionTriggered, 1)
	boBus.Subscribe(bus.KindInteractionTriggered, func(e bus.Event) {
		ev := e.(bus.InteractionTriggered)
		if ev.Source == bus.SourcePeerSignal {
			select {
			case peerSeen <- ev:
			default:
			}
		}
	})

	_, err := alice.SendMessage(session.KindText, "hello across the gap")
	require.NoError(t, err)

	select {
	case ev := <-peerSeen:
		require.Equal(t, "text", ev.MessageKind)
		require.Equal(t, "hello across the gap", ev.Payload)
	case <-time.After(3 * time.Second):
		t.Fatal("relayed message never reached the peer")
	}

	msgs := bo.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, session.SenderRemote, msgs[0].Sender)

	// Sender kept its optimistic echo only.
	aliceMsgs := alice.Messages()
	require.Len(t, aliceMsgs, 1)
	require.Equal(t, session.SenderLocal, aliceMsgs[0].Sender)
}

func TestPairing_DisconnectReturnsToIdle(t *testing.T) {
	relayURL := newRelay(t)

	alice, _ := newClient(t, relayURL, "teardown-room", profile.Profile{}, "Alice")
	bo, _ := newClient(t, relayURL, "teardown-room", profile.Profile{}, "Bo")

	require.NoError(t, alice.StartMatching(context.Background()))
	require.NoError(t, bo.StartMatching(context.Background()))
	waitForStatus(t, alice, session.StatusConnected)

	alice.SendMessage(session.KindEmoji, "✌️")
	alice.Disconnect()

	require.Equal(t, session.StatusIdle, alice.Status())
	require.Nil(t, alice.Peer())
	require.Empty(t, alice.Messages())
}

// severableProxy relays TCP between a client and the relay and can drop every
// live connection on demand while continuing to accept new ones.
type severableProxy struct {
	ln net.Listener

	mu        sync.Mutex
	clients   []net.Conn
	upstreams []net.Conn
}

func newSeverableProxy(t *testing.T, target string) *severableProxy {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &severableProxy{ln: ln}
	go p.serve(target)
	t.Cleanup(func() {
		ln.Close()
		p.sever()
	})
	return p
}

func (p *severableProxy) url() string {
	return "ws://" + p.ln.Addr().String()
}

func (p *severableProxy) serve(target string) {
	for {
		client, err := p.ln.Accept()
		if err != nil {
			return
		}
		upstream, err := net.Dial("tcp", target)
		if err != nil {
			client.Close()
			continue
		}
		p.mu.Lock()
		p.clients = append(p.clients, client)
		p.upstreams = append(p.upstreams, upstream)
		p.mu.Unlock()
		go io.Copy(upstream, client)
		go io.Copy(client, upstream)
	}
}

// sever cuts the relay side first and the client side shortly after, so the
// relay clears the dead membership before the client notices and re-dials.
func (p *severableProxy) sever() {
	p.mu.Lock()
	clients, upstreams := p.clients, p.upstreams
	p.clients, p.upstreams = nil, nil
	p.mu.Unlock()

	for _, c := range upstreams {
		c.Close()
	}
	time.Sleep(50 * time.Millisecond)
	for _, c := range clients {
		c.Close()
	}
}

func (p *severableProxy) activeConns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients) + len(p.upstreams)
}

func TestTransport_ReconnectsAndRejoinsAfterDrop(t *testing.T) {
	relayURL := newRelay(t)
	proxy := newSeverableProxy(t, strings.TrimPrefix(relayURL, "ws://"))

	alice, _ := newClient(t, proxy.url(), "drop-room", profile.New([]string{"blind"}), "Alice")
	require.NoError(t, alice.StartMatching(context.Background()))
	require.Eventually(t, func() bool {
		return proxy.activeConns() >= 2
	}, 3*time.Second, 10*time.Millisecond, "proxied connection never established")

	// Cut the wire under the live websocket. The transport must re-dial and
	// re-issue the join so the room sees Alice again.
	proxy.sever()

	bo, _ := newClient(t, relayURL, "drop-room", profile.New([]string{"deaf"}), "Bo")
	require.NoError(t, bo.StartMatching(context.Background()))

	waitForStatus(t, alice, session.StatusConnected)
	waitForStatus(t, bo, session.StatusConnected)

	require.NotNil(t, alice.Peer())
	require.Equal(t, "Bo", alice.Peer().DisplayName)
	require.NotNil(t, bo.Peer())
	require.Equal(t, "Alice", bo.Peer().DisplayName)
	require.True(t, bo.Peer().Profile.IsBlind())
}

func TestTransport_RetriesExhaustedEndsInError(t *testing.T) {
	// Nothing is listening here.
	sess, _ := newClient(t, "ws://127.0.0.1:1", "void-room", profile.Profile{}, "Alone")

	err := sess.StartMatching(context.Background())
	require.Error(t, err)
	require.Equal(t, session.StatusError, sess.Status())

	// Error does not self-heal; an explicit StartMatching is required and
	// allowed.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, session.StatusError, sess.Status())
	require.Error(t, sess.StartMatching(context.Background()))
}
