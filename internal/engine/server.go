package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/domain"
	"github.com/vburojevic/dedicated/internal/replay"
)

const (
	// maxNameLength bounds the participant name kept after the handshake.
	maxNameLength = 64
	// maxLineLength bounds every line read from a participant; longer lines drop the connection.
	maxLineLength = 512
	// DefaultHandshakeTimeout bounds the wait for a participant's name line.
	DefaultHandshakeTimeout = 10 * time.Second
)

var errLineTooLong = errors.New("line exceeds limit")

// Options configures a Server.
type Options struct {
	// ConnectTimeout aborts a session nobody joined in time. 0 waits forever.
	ConnectTimeout time.Duration
	// HandshakeTimeout drops a connection that sends no name line in time.
	HandshakeTimeout time.Duration
	// ReplayDir receives replay artifacts.
	ReplayDir string
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Server is a TCP session host.
type Server struct {
	opts Options
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.ReplayDir == "" {
		opts.ReplayDir = "demos"
	}
	return &Server{opts: opts}
}

// Start binds the descriptor's endpoint and begins accepting participants.
func (s *Server) Start(ctx context.Context, desc domain.SessionDescriptor, script domain.SessionScript) (Handle, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", desc.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", desc.Endpoint(), err)
	}

	sess := &session{
		opts:     s.opts,
		logger:   s.opts.Logger.With(zap.String("endpoint", ln.Addr().String())),
		desc:     desc,
		script:   script,
		expected: script.ExpectedParticipants(),
		ln:       ln,
		conns:    make(map[net.Conn]string),
		pending:  make(map[net.Conn]struct{}),
		created:  s.opts.Clock.Now(),
	}
	if s.opts.ConnectTimeout > 0 {
		sess.timer = s.opts.Clock.AfterFunc(s.opts.ConnectTimeout, sess.connectTimedOut)
	}
	sess.wg.Add(1)
	go sess.acceptLoop()

	sess.logger.Info("session listening", zap.Int("expected_participants", sess.expected))
	return sess, nil
}

// session is the Handle returned by Server.Start.
type session struct {
	opts     Options
	logger   *zap.Logger
	desc     domain.SessionDescriptor
	script   domain.SessionScript
	expected int
	ln       net.Listener
	timer    *clock.Timer
	created  time.Time
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]string   // joined participants
	pending  map[net.Conn]struct{} // accepted, name not received yet
	joined   int
	ready    bool
	finished bool
	closed   bool
	id       domain.SessionID
	started  time.Time
	rec      *replay.Recorder
}

// Addr is the bound listener address.
func (s *session) Addr() net.Addr { return s.ln.Addr() }

func (s *session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *session) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.finished:
		return domain.StatusFinished
	case s.ready:
		return domain.StatusReady
	default:
		return domain.StatusNotReady
	}
}

func (s *session) SessionID() domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *session) ReplayArtifactName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.Name()
}

func (s *session) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("accept failed", zap.Error(err))
			}
			s.mu.Lock()
			s.finishLocked("listener closed")
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		if s.finished {
			s.mu.Unlock()
			_ = conn.Close()
			continue
		}
		s.pending[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *session) serve(conn net.Conn) {
	defer s.wg.Done()
	defer s.release(conn)

	_ = conn.SetDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	if _, err := fmt.Fprintln(conn, s.greeting()); err != nil {
		return
	}
	r := bufio.NewReaderSize(conn, maxLineLength)
	line, err := readLine(r)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		s.logger.Debug("handshake failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		return
	}
	_ = conn.SetDeadline(time.Time{})

	name := strings.TrimSpace(line)
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "" {
		name = conn.RemoteAddr().String()
	}
	if !s.join(conn, name) {
		return
	}
	// Participants stay until they hang up.
	for {
		if _, err := readLine(r); err != nil {
			if errors.Is(err, errLineTooLong) {
				s.logger.Warn("dropping participant", zap.String("name", name), zap.Error(err))
			}
			break
		}
	}
	s.leave(conn)
}

// readLine reads one newline-terminated line without buffering past maxLineLength.
// A final unterminated line is returned together with io.EOF.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", errLineTooLong
	}
	return string(line), err
}

// release forgets a connection that never joined and closes it.
func (s *session) release(conn net.Conn) {
	s.mu.Lock()
	delete(s.pending, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *session) greeting() string {
	s.mu.Lock()
	id := "-"
	if s.ready {
		id = s.id.String()
	}
	s.mu.Unlock()
	return fmt.Sprintf("SESSION %s SYNC %s SEED %d MAP %08x MOD %08x", id, SyncVersion, s.desc.RandomSeed, s.desc.MapChecksum, s.desc.ModChecksum)
}

func (s *session) join(conn net.Conn, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.closed {
		return false
	}
	delete(s.pending, conn)
	s.conns[conn] = name
	s.joined++
	now := s.opts.Clock.Now()
	s.logger.Info("participant joined", zap.String("name", name), zap.Int("connected", len(s.conns)))

	if s.ready {
		s.recordLocked(domain.NewReplayEvent("join", name, conn.RemoteAddr().String(), now))
		return true
	}
	if len(s.conns) >= s.expected {
		s.becomeReadyLocked(now)
	}
	return true
}

func (s *session) becomeReadyLocked(now time.Time) {
	s.id = domain.SessionID(uuid.New())
	s.started = now
	if s.timer != nil {
		s.timer.Stop()
	}
	rec, err := replay.Create(s.opts.ReplayDir, domain.ReplayHeader{
		RandomSeed:  s.desc.RandomSeed,
		MapName:     s.script.MapName,
		ModName:     s.script.ModName,
		MapChecksum: fmt.Sprintf("%08x", s.desc.MapChecksum),
		ModChecksum: fmt.Sprintf("%08x", s.desc.ModChecksum),
		Script:      s.desc.ScriptText,
	}, s.id, now)
	if err != nil {
		s.logger.Error("replay recording disabled", zap.Error(err))
	} else {
		s.rec = rec
		for conn, name := range s.conns {
			s.recordLocked(domain.NewReplayEvent("join", name, conn.RemoteAddr().String(), now))
		}
	}
	s.ready = true
	s.logger.Info("session started", zap.Stringer("session_id", s.id))
}

func (s *session) leave(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.conns[conn]
	if !ok {
		return
	}
	delete(s.conns, conn)
	if s.finished {
		return
	}
	s.logger.Info("participant left", zap.String("name", name), zap.Int("connected", len(s.conns)))
	if s.ready {
		s.recordLocked(domain.NewReplayEvent("leave", name, "", s.opts.Clock.Now()))
		if len(s.conns) == 0 {
			s.finishLocked("all participants left")
		}
	}
}

func (s *session) connectTimedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready || s.finished {
		return
	}
	s.logger.Warn("no session started before connect timeout",
		zap.Duration("timeout", s.opts.ConnectTimeout),
		zap.Int("connected", len(s.conns)),
	)
	s.finishLocked("connect timeout")
}

func (s *session) recordLocked(v interface{}) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(v); err != nil {
		s.logger.Warn("replay write failed", zap.Error(err))
	}
}

// finishLocked marks the session over and stops accepting participants.
func (s *session) finishLocked(reason string) {
	if s.finished {
		return
	}
	s.finished = true
	s.logger.Info("session finished", zap.String("reason", reason), zap.Bool("started", s.ready))
	if s.timer != nil {
		s.timer.Stop()
	}
	_ = s.ln.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	for conn := range s.pending {
		_ = conn.Close()
	}
	if s.rec != nil {
		if err := s.rec.Close(domain.NewReplayEnd(s.joined, s.started, s.opts.Clock.Now())); err != nil {
			s.logger.Warn("replay close failed", zap.Error(err))
		}
	}
}

// Close finishes the session if still running and waits for its goroutines.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.finishLocked("closed")
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
