// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warbler-im/warbler/lib/clock"
	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/lib/secret"
	"github.com/warbler-im/warbler/observe"
	"github.com/warbler-im/warbler/stanza"
)

// Session owns the authenticated connection and exposes the outward
// operations the host application consumes: send chat and group
// messages, join and leave rooms, send files with automatic fallback,
// invite, and generic correlated queries.
//
// Exactly one dispatch goroutine reads inbound frames and drives all
// state machines. Dispatcher-owned maps (transfers, rate-limit
// windows) are touched only from that goroutine; room membership is
// additionally mutated by host-facing methods and is mutex-guarded.
type Session struct {
	transport Transport
	logger    *slog.Logger
	clock     clock.Clock
	metrics   *observe.Metrics

	address          jid.JID // account bare JID
	boundJID         jid.JID // full JID after resource binding
	nick             string
	conferenceDomain string
	uploadService    jid.JID
	downloadDir      string
	iqTimeout        time.Duration
	httpClient       *http.Client

	registry Registry
	history  HistorySink
	fetcher  Fetcher

	// pending correlates IQ responses to in-flight requests by ID.
	pendingMu sync.Mutex
	pending   map[string]chan *stanza.IQ

	// stateMu guards rooms and pendingConfig: the dispatch goroutine
	// and host-facing methods both mutate membership.
	stateMu       sync.Mutex
	rooms         map[string]*roomMembership
	pendingConfig map[string]string // config-form IQ id → room bare JID

	// Dispatch-goroutine-owned state. No locking: single owner.
	transfers map[string]*transferSession
	limiter   *rateLimiter

	profileMu sync.Mutex
	profile   stanza.VCard

	messages chan IncomingMessage
	events   chan Event

	// ctx ends when the session closes; it bounds the dispatch
	// goroutine and background work spawned from it.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// DialConfig holds connection parameters for Dial.
type DialConfig struct {
	// URL is the server's WebSocket endpoint (wss://...).
	URL string

	// Password authenticates the account. Read but not closed — the
	// caller retains ownership.
	Password *secret.Buffer

	// Resource is the resource requested at binding. Defaults to
	// "warbler".
	Resource string

	Config
}

// Dial connects, authenticates, binds a resource, announces
// availability, publishes the profile record, and starts the dispatch
// loop. The returned Session is online; lifecycle transitions are
// delivered on Events.
func Dial(ctx context.Context, cfg DialConfig) (*Session, error) {
	if cfg.Address.IsZero() {
		return nil, fmt.Errorf("xmpp: Address is required")
	}
	if cfg.Password == nil {
		return nil, fmt.Errorf("xmpp: Password is required")
	}

	transport, err := DialTransport(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	resource := cfg.Resource
	if resource == "" {
		resource = "warbler"
	}

	boundJID, err := negotiate(ctx, transport, cfg.Address, cfg.Password, resource)
	if err != nil {
		transport.Close()
		return nil, err
	}

	return NewSession(transport, boundJID, cfg.Config)
}

// NewSession starts the engine over an already-authenticated
// transport. Used directly by tests and by hosts with their own
// connection establishment; Dial is the production path.
func NewSession(transport Transport, boundJID jid.JID, cfg Config) (*Session, error) {
	if cfg.Address.IsZero() {
		return nil, fmt.Errorf("xmpp: Address is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("xmpp: Registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeSource := cfg.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	nick := cfg.Nick
	if nick == "" {
		nick = cfg.Address.Localpart()
	}
	conferenceDomain := cfg.ConferenceDomain
	if conferenceDomain == "" {
		conferenceDomain = "conference." + cfg.Address.Domain()
	}
	uploadService := cfg.UploadService
	if uploadService.IsZero() {
		service, err := jid.Parse("upload." + cfg.Address.Domain())
		if err != nil {
			return nil, fmt.Errorf("xmpp: deriving upload service address: %w", err)
		}
		uploadService = service
	}
	downloadDir := cfg.DownloadDir
	if downloadDir == "" {
		downloadDir = os.TempDir()
	}
	iqTimeout := cfg.IQTimeout
	if iqTimeout <= 0 {
		iqTimeout = 10 * time.Second
	}
	messageBuffer := cfg.MessageBuffer
	if messageBuffer <= 0 {
		messageBuffer = 64
	}

	session := &Session{
		transport:        transport,
		logger:           logger,
		clock:            timeSource,
		metrics:          cfg.Metrics,
		address:          cfg.Address.Bare(),
		boundJID:         boundJID,
		nick:             nick,
		conferenceDomain: conferenceDomain,
		uploadService:    uploadService,
		downloadDir:      downloadDir,
		iqTimeout:        iqTimeout,
		httpClient:       httpClient,
		registry:         cfg.Registry,
		history:          cfg.History,
		fetcher:          cfg.Fetcher,
		pending:          make(map[string]chan *stanza.IQ),
		rooms:            make(map[string]*roomMembership),
		pendingConfig:    make(map[string]string),
		transfers:        make(map[string]*transferSession),
		limiter:          newRateLimiter(timeSource),
		profile:          cfg.Profile,
		messages:         make(chan IncomingMessage, messageBuffer),
		events:           make(chan Event, 8),
		done:             make(chan struct{}),
	}
	session.ctx, session.cancel = context.WithCancel(context.Background())

	go session.readLoop()
	go session.announce()

	return session, nil
}

// announce sends initial availability and publishes the cached profile
// record. The publish is unconditional: locally-held defaults win at
// login; merge-on-query happens later, when the record is explicitly
// queried.
func (s *Session) announce() {
	if err := s.send(&stanza.Presence{}); err != nil {
		s.logger.Error("availability announcement failed", "error", err)
		s.emit(Event{Kind: EventError, Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.iqTimeout)
	defer cancel()
	if err := s.publishProfile(ctx); err != nil {
		// Publish failure does not take the session down: the record
		// is republished on the next local edit.
		s.logger.Warn("profile publish on login failed", "error", err)
	}

	s.emit(Event{Kind: EventOnline})
}

// Events delivers lifecycle transitions. The channel is buffered; a
// host that stops draining loses the oldest transitions.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Messages delivers forwarded inbound messages to the host. The queue
// is bounded; the engine drops (and counts) rather than blocking
// dispatch when the host falls behind.
func (s *Session) Messages() <-chan IncomingMessage {
	return s.messages
}

// Address returns the account's bare JID.
func (s *Session) Address() jid.JID { return s.address }

// BoundJID returns the full JID assigned at resource binding.
func (s *Session) BoundJID() jid.JID { return s.boundJID }

// SendChat sends a direct chat message.
func (s *Session) SendChat(to jid.JID, text string) error {
	err := s.send(&stanza.Message{To: to, Type: stanza.MessageChat, Body: text})
	if err != nil {
		return fmt.Errorf("xmpp: sending chat to %s: %w", to, err)
	}
	s.record(to.Bare(), "out", text)
	return nil
}

// SendGroupchat sends a message to a joined room. The room may be a
// bare name or a fully qualified room address.
func (s *Session) SendGroupchat(room string, text string) error {
	roomJID, err := s.resolveRoom(room)
	if err != nil {
		return err
	}
	err = s.send(&stanza.Message{To: roomJID, Type: stanza.MessageGroupchat, Body: text})
	if err != nil {
		return fmt.Errorf("xmpp: sending groupchat to %s: %w", roomJID, err)
	}
	s.record(roomJID, "out", text)
	return nil
}

// Invite invites an identity to a room using a mediated invite routed
// through the room. Reason and password are optional.
func (s *Session) Invite(room string, target jid.JID, reason, password string) error {
	roomJID, err := s.resolveRoom(room)
	if err != nil {
		return err
	}
	invite := &stanza.Message{
		To: roomJID,
		MUCUser: &stanza.MUCUser{
			Invites:  []stanza.MUCInvite{{To: target, Reason: reason}},
			Password: password,
		},
	}
	if err := s.send(invite); err != nil {
		return fmt.Errorf("xmpp: inviting %s to %s: %w", target, roomJID, err)
	}
	return nil
}

// parseRecipient parses a direct-chat recipient address.
func (s *Session) parseRecipient(to string) (jid.JID, error) {
	target, err := jid.Parse(to)
	if err != nil {
		return jid.JID{}, fmt.Errorf("xmpp: recipient %q: %w", to, err)
	}
	return target, nil
}

// Query sends a correlated IQ and waits for its response, bounded by
// the configured IQ timeout and ctx. A response of type error is
// returned alongside the decoded stanza error.
func (s *Session) Query(ctx context.Context, iq *stanza.IQ) (*stanza.IQ, error) {
	return s.sendIQ(ctx, iq)
}

// Close ends the session: sends the stream trailer best-effort, closes
// the transport, and emits EventOffline. Idempotent.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if frame, err := stanza.Encode(&stanza.StreamClose{}); err == nil {
			// Best effort: the transport close below is what matters.
			_ = s.transport.WriteFrame(ctx, frame)
		}
		close(s.done)
		s.cancel()
		closeErr = s.transport.Close()
		s.emit(Event{Kind: EventOffline})
	})
	return closeErr
}

// send encodes and writes one outbound stanza.
func (s *Session) send(value any) error {
	frame, err := stanza.Encode(value)
	if err != nil {
		return err
	}
	return s.transport.WriteFrame(context.Background(), frame)
}

// sendIQ writes a request IQ and waits for the correlated response.
// An empty ID is filled with a fresh UUID. The wait is bounded by the
// session's IQ timeout: a missing response yields an error, never an
// indefinite hang.
func (s *Session) sendIQ(ctx context.Context, iq *stanza.IQ) (*stanza.IQ, error) {
	if iq.ID == "" {
		iq.ID = uuid.NewString()
	}

	responses := make(chan *stanza.IQ, 1)
	s.pendingMu.Lock()
	s.pending[iq.ID] = responses
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, iq.ID)
		s.pendingMu.Unlock()
	}()

	if err := s.send(iq); err != nil {
		return nil, fmt.Errorf("xmpp: sending query %s: %w", iq.ID, err)
	}

	select {
	case response := <-responses:
		if response.Type == stanza.IQError && response.Error != nil {
			return response, response.Error
		}
		return response, nil
	case <-s.clock.After(s.iqTimeout):
		return nil, fmt.Errorf("xmpp: query %s: no response within %s", iq.ID, s.iqTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("xmpp: query %s: %w", iq.ID, ctx.Err())
	case <-s.done:
		return nil, fmt.Errorf("xmpp: query %s: session closed", iq.ID)
	}
}

// deliverResponse hands an IQ result/error to its waiting request, if
// any. Unclaimed responses are dropped: they answer nothing we asked.
func (s *Session) deliverResponse(iq *stanza.IQ) bool {
	s.pendingMu.Lock()
	responses, ok := s.pending[iq.ID]
	if ok {
		delete(s.pending, iq.ID)
	}
	s.pendingMu.Unlock()
	if !ok {
		return false
	}
	responses <- iq
	return true
}

// record appends to the message history sink, if configured.
func (s *Session) record(identity jid.JID, direction, body string) {
	if s.history == nil {
		return
	}
	s.history.Append(HistoryEntry{
		Identity:  identity,
		Direction: direction,
		Body:      body,
		At:        s.clock.Now(),
	})
}

// emit delivers a lifecycle event without blocking.
func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("lifecycle event dropped", "kind", event.Kind.String())
	}
}

// forward queues a message for the host. The queue is bounded: when
// the host falls behind, the message is dropped with a warning rather
// than stalling the dispatch loop.
func (s *Session) forward(message IncomingMessage) {
	select {
	case s.messages <- message:
	default:
		s.metrics.CountMessageDropped()
		s.logger.Warn("host message queue full, dropping message",
			"sender", message.Sender.String(),
		)
	}
}

// negotiate drives stream establishment on a fresh transport: framed
// open, SASL PLAIN, stream restart, resource binding. Returns the full
// JID the server assigned.
func negotiate(ctx context.Context, transport Transport, address jid.JID, password *secret.Buffer, resource string) (jid.JID, error) {
	domain := address.Domain()

	// Opening exchange: our open, the server's open, then features.
	if err := writeStanza(ctx, transport, &stanza.StreamOpen{To: domain, Version: "1.0"}); err != nil {
		return jid.JID{}, err
	}
	features, err := awaitFeatures(ctx, transport)
	if err != nil {
		return jid.JID{}, err
	}
	if !features.OffersMechanism("PLAIN") {
		return jid.JID{}, fmt.Errorf("xmpp: server does not offer SASL PLAIN")
	}

	// SASL PLAIN: authzid NUL authcid NUL password.
	initial := "\x00" + address.Localpart() + "\x00" + password.String()
	auth := &stanza.SASLAuth{
		Mechanism: "PLAIN",
		Payload:   base64.StdEncoding.EncodeToString([]byte(initial)),
	}
	if err := writeStanza(ctx, transport, auth); err != nil {
		return jid.JID{}, err
	}
	switch result, err := readStanza(ctx, transport); {
	case err != nil:
		return jid.JID{}, err
	default:
		switch outcome := result.(type) {
		case *stanza.SASLSuccess:
		case *stanza.SASLFailure:
			return jid.JID{}, fmt.Errorf("xmpp: authentication failed: %s", outcome.Reason)
		default:
			return jid.JID{}, fmt.Errorf("xmpp: unexpected %T during authentication", result)
		}
	}

	// Stream restart after SASL, then resource binding.
	if err := writeStanza(ctx, transport, &stanza.StreamOpen{To: domain, Version: "1.0"}); err != nil {
		return jid.JID{}, err
	}
	features, err = awaitFeatures(ctx, transport)
	if err != nil {
		return jid.JID{}, err
	}
	if features.Bind == nil {
		return jid.JID{}, fmt.Errorf("xmpp: server does not offer resource binding")
	}

	bindRequest := &stanza.IQ{
		Type: stanza.IQSet,
		ID:   uuid.NewString(),
		Bind: &stanza.Bind{Resource: resource},
	}
	if err := writeStanza(ctx, transport, bindRequest); err != nil {
		return jid.JID{}, err
	}
	for {
		decoded, err := readStanza(ctx, transport)
		if err != nil {
			return jid.JID{}, err
		}
		response, ok := decoded.(*stanza.IQ)
		if !ok || response.ID != bindRequest.ID {
			continue
		}
		if response.Type == stanza.IQError && response.Error != nil {
			return jid.JID{}, fmt.Errorf("xmpp: resource binding failed: %w", response.Error)
		}
		if response.Bind == nil || response.Bind.JID == "" {
			return jid.JID{}, fmt.Errorf("xmpp: binding response missing JID")
		}
		bound, err := jid.Parse(response.Bind.JID)
		if err != nil {
			return jid.JID{}, fmt.Errorf("xmpp: server-assigned JID invalid: %w", err)
		}
		return bound, nil
	}
}

// awaitFeatures reads frames until stream features arrive, skipping
// the server's stream open and anything unrecognized.
func awaitFeatures(ctx context.Context, transport Transport) (*stanza.StreamFeatures, error) {
	for {
		decoded, err := readStanza(ctx, transport)
		if err != nil {
			return nil, err
		}
		switch value := decoded.(type) {
		case *stanza.StreamFeatures:
			return value, nil
		case *stanza.StreamOpen, *stanza.Unknown:
			continue
		case *stanza.StreamClose:
			return nil, fmt.Errorf("xmpp: server closed the stream during negotiation")
		default:
			continue
		}
	}
}

func writeStanza(ctx context.Context, transport Transport, value any) error {
	frame, err := stanza.Encode(value)
	if err != nil {
		return err
	}
	return transport.WriteFrame(ctx, frame)
}

func readStanza(ctx context.Context, transport Transport) (stanza.Stanza, error) {
	frame, err := transport.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	return stanza.Decode(frame)
}
