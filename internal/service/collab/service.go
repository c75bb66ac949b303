package collab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/collabpad/backend/internal/metrics"
	"github.com/zhouzirui/collabpad/backend/internal/model/message"
	"github.com/zhouzirui/collabpad/backend/internal/model/session"
	"github.com/zhouzirui/collabpad/backend/internal/service/broadcast"
	"github.com/zhouzirui/collabpad/backend/internal/service/document"
	"github.com/zhouzirui/collabpad/backend/internal/service/registry"
)

const tracerName = "github.com/zhouzirui/collabpad/backend/internal/service/collab"

var (
	ErrNotOpen        = errors.New("session is not open")
	ErrAlreadyOpened  = errors.New("session already opened")
	ErrUnknownSession = errors.New("session not registered")
)

// Service owns the shared document and the session registry. Every state
// change and the broadcast it triggers run under one lock, so updates
// never interleave and last write wins.
type Service struct {
	mu        sync.Mutex
	doc       *document.Document
	registry  *registry.Registry
	broadcast *broadcast.Engine
	metrics   *metrics.Collector
	tracer    trace.Tracer
}

type options struct {
	newID   registry.IDGenerator
	metrics *metrics.Collector
	tracer  trace.Tracer
	initial string
}

// Option configures a Service.
type Option func(*options)

// WithIDGenerator overrides the session id scheme.
func WithIDGenerator(gen registry.IDGenerator) Option {
	return func(o *options) {
		o.newID = gen
	}
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithInitialContent seeds the shared document.
func WithInitialContent(content string) Option {
	return func(o *options) {
		o.initial = content
	}
}

// NewService builds a service with an empty document unless configured otherwise.
func NewService(opts ...Option) *Service {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	reg := registry.New(o.newID)
	return &Service{
		doc:       document.New(o.initial),
		registry:  reg,
		broadcast: broadcast.New(reg, o.metrics),
		metrics:   o.metrics,
		tracer:    o.tracer,
	}
}

// Attach creates the connection state machine for peer. The session is
// not registered until Open.
func (s *Service) Attach(peer registry.Peer) *Conn {
	return &Conn{svc: s, peer: peer, state: StateConnecting}
}

// Users returns the current user list.
func (s *Service) Users() []session.UserInfo {
	return s.registry.List()
}

// Document returns the current shared document.
func (s *Service) Document() document.Snapshot {
	return s.doc.Snapshot()
}

// Sessions reports the number of registered sessions.
func (s *Service) Sessions() int {
	return s.registry.Len()
}

func (s *Service) open(peer registry.Peer) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.registry.Register(peer)
	initEvent := message.NewInit(s.doc.Content(), id, s.registry.List())
	if !s.broadcast.Send(peer, initEvent) {
		log.Printf("[collab] init not delivered session=%s", id)
	}
	s.metrics.SessionOpened()
	log.Printf("[collab] session opened id=%s sessions=%d", id, s.registry.Len())
	return id
}

func (s *Service) receive(ctx context.Context, peer registry.Peer, id string, raw []byte) error {
	_, span := s.tracer.Start(ctx, "collab.receive",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("collab.session_id", id)),
	)
	defer span.End()

	in, err := message.Decode(raw)
	if err != nil {
		s.metrics.MessageHandled("", metrics.StatusDropped)
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return fmt.Errorf("decode: %w", err)
	}
	span.SetAttributes(attribute.String("collab.message_type", in.Type))

	if err := s.apply(peer, in); err != nil {
		s.metrics.MessageHandled(in.Type, metrics.StatusDropped)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.metrics.MessageHandled(in.Type, metrics.StatusOK)
	return nil
}

func (s *Service) apply(peer registry.Peer, in message.Inbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.registry.Lookup(peer)
	if !ok {
		return ErrUnknownSession
	}

	switch in.Type {
	case message.TypeUpdate:
		s.handleUpdate(peer, in.Content)
	case message.TypeCursor:
		s.handleCursor(peer, sess.ID, in.Cursor)
	case message.TypeSelection:
		s.handleSelection(peer, sess.ID, in.Selection)
	default:
		return fmt.Errorf("%w: %q", message.ErrUnknownType, in.Type)
	}
	return nil
}

// handleUpdate overwrites the document. Identical content is still applied
// and rebroadcast.
func (s *Service) handleUpdate(sender registry.Peer, content string) {
	s.doc.Set(content)
	s.broadcast.Broadcast(message.TypeUpdate, message.NewUpdate(content), sender)
}

func (s *Service) handleCursor(sender registry.Peer, id string, cursor session.Cursor) {
	s.registry.SetCursor(sender, cursor)
	s.broadcast.Broadcast(message.TypeCursor, message.NewCursor(id, cursor), sender)
}

// handleSelection relays the range; selections are not stored.
func (s *Service) handleSelection(sender registry.Peer, id string, selection session.Selection) {
	s.broadcast.Broadcast(message.TypeSelection, message.NewSelection(id, selection), sender)
}

func (s *Service) close(peer registry.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.registry.Remove(peer)
	if !ok {
		return
	}
	s.broadcast.Broadcast(message.TypeUserDisconnect, message.NewUserDisconnect(sess.ID, s.registry.List()), nil)
	s.metrics.SessionClosed()
	log.Printf("[collab] session closed id=%s sessions=%d", sess.ID, s.registry.Len())
}
