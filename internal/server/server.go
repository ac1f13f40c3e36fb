package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/oliynykmax/irc-hive/internal/config"
)

const serverVersion = "irc-hive-1.0"

// Server is an IRC server instance. It owns the connection and channel
// registries; every mutation of either happens under mu, which each reader
// goroutine takes for the full parse-and-dispatch of a read, so handlers
// never observe or produce partial state.
type Server struct {
	config    *config.Config
	startTime time.Time
	metrics   *Metrics

	mu       sync.Mutex
	conns    map[string]*Conn
	channels map[string]*Channel

	listener net.Listener
	admin    *echo.Echo
	done     chan struct{}
}

// New creates a server from the given configuration
func New(cfg *config.Config) *Server {
	return &Server{
		config:   cfg,
		metrics:  newMetrics(),
		conns:    make(map[string]*Conn),
		channels: make(map[string]*Channel),
		done:     make(chan struct{}),
	}
}

// Name returns the server name used as the prefix of every reply
func (s *Server) Name() string {
	return s.config.Server.Name
}

// Addr returns the bound listen address, nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listen socket and begins accepting clients. The admin
// endpoint, when enabled, is served on its own listener.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.GetListenAddress())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.GetListenAddress(), err)
	}
	s.listener = listener
	s.startTime = time.Now()
	log.Printf("IRC server listening on %s", listener.Addr())

	if s.config.Admin.Enabled {
		s.admin = s.newAdmin()
		go func() {
			addr := s.config.GetAdminListenAddress()
			if err := s.admin.Start(addr); err != nil && err != http.ErrServerClosed {
				log.Printf("admin server: %v", err)
			}
		}()
	}

	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every live connection
func (s *Server) Stop() {
	close(s.done)
	s.listener.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		c.close()
	}
	s.mu.Unlock()

	if s.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.admin.Shutdown(ctx)
	}
	log.Printf("IRC server stopped")
}

func (s *Server) acceptLoop() {
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("accept: %v", err)
				continue
			}
		}

		c := newConn(s, sock)
		s.mu.Lock()
		s.conns[c.ID] = c
		s.mu.Unlock()
		s.metrics.ConnectionsActive.Inc()
		log.Printf("connection %s accepted from %s", c.ID, sock.RemoteAddr())

		go s.readLoop(c)
	}
}

// readLoop reads the socket and feeds the framer. Every batch of parsed
// messages is dispatched under the server mutex; the loop ends when the
// peer disconnects or a handler tears the connection down.
func (s *Server) readLoop(c *Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			alive := true
			dropped := c.framer.Dropped()
			s.mu.Lock()
			for _, msg := range c.framer.Feed(buf[:n]) {
				if !s.dispatch(c, msg) {
					alive = false
					break
				}
			}
			if !alive {
				s.quitConn(c, "Client quit")
			}
			s.mu.Unlock()
			if d := c.framer.Dropped() - dropped; d > 0 {
				s.metrics.FramingErrors.Add(float64(d))
			}
			if !alive {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				select {
				case <-s.done:
				default:
					log.Printf("read from %s: %v", c.ID, err)
				}
			}
			s.mu.Lock()
			s.quitConn(c, "Connection closed")
			s.mu.Unlock()
			return
		}
	}
}

// quitConn removes the connection from every joined channel with a QUIT
// broadcast, drops it from the registry and closes the socket. It is a
// no-op for a connection that was already removed. Callers hold mu.
func (s *Server) quitConn(c *Conn, reason string) {
	if _, ok := s.conns[c.ID]; !ok {
		return
	}

	line := fmt.Sprintf(":%s QUIT :%s", c.Prefix(), reason)
	for _, name := range c.JoinedChannels() {
		ch := s.getChannel(name)
		if ch == nil {
			continue
		}
		ch.Remove(c)
		if ch.IsEmpty() {
			s.removeChannel(name)
			continue
		}
		if err := ch.Broadcast(line, c); err != nil {
			log.Printf("quit broadcast on %s: %v", name, err)
		}
	}

	delete(s.conns, c.ID)
	s.metrics.ConnectionsActive.Dec()
	log.Printf("connection %s closed", c.ID)
	c.close()
}

// leaveChannel removes the connection from one channel, broadcasting the
// given departure line to whoever remains and destroying the channel when
// it goes empty. Callers hold mu.
func (s *Server) leaveChannel(ch *Channel, c *Conn, line string) {
	ch.Remove(c)
	if ch.IsEmpty() {
		s.removeChannel(ch.Name)
		return
	}
	if err := ch.Broadcast(line, c); err != nil {
		log.Printf("part broadcast on %s: %v", ch.Name, err)
	}
}

func (s *Server) getChannel(name string) *Channel {
	return s.channels[name]
}

func (s *Server) createChannel(name string) *Channel {
	ch := NewChannel(name)
	s.channels[name] = ch
	s.metrics.ChannelsActive.Inc()
	log.Printf("channel %s created", name)
	return ch
}

func (s *Server) removeChannel(name string) {
	if _, ok := s.channels[name]; !ok {
		return
	}
	delete(s.channels, name)
	s.metrics.ChannelsActive.Dec()
	log.Printf("channel %s destroyed", name)
}

func (s *Server) findConnByNick(nick string) *Conn {
	for _, c := range s.conns {
		if c.Nickname == nick {
			return c
		}
	}
	return nil
}
