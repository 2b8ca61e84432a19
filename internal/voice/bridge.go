package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"propdial/internal/calls"
	"propdial/internal/campaigns"
	"propdial/pkg/logger"
)

// Store is the persistence the bridge needs; campaigns.Store satisfies it.
type Store interface {
	GetLead(ctx context.Context, leadID string) (campaigns.Lead, error)
	GetCampaign(ctx context.Context, campaignID string) (campaigns.Campaign, error)
	GetOrganization(ctx context.Context, orgID string) (campaigns.Organization, error)
	CreateCallLog(ctx context.Context, l calls.Log) error
	UpdateCallLog(ctx context.Context, callSID string, u campaigns.CallLogUpdate) (calls.Log, error)
}

// SessionAuditor records session teardown; audit.Service satisfies it.
type SessionAuditor interface {
	LogCallSessionClosed(ctx context.Context, orgID, campaignID, leadID, callSID, reason string, transcriptLines int) error
}

// Limiter caps concurrent live sessions per organization.
type Limiter interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Conn is the subset of *websocket.Conn used for both peers.
// Close and WriteControl may be called concurrently with the other methods.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens the speech-AI realtime connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Close codes sent to the telephony peer.
const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseInternalError   = websocket.CloseInternalServerErr
	CloseTryAgainLater   = websocket.CloseTryAgainLater
)

const (
	defaultIdleTimeout  = 60 * time.Second
	defaultMaxDuration  = 15 * time.Minute
	defaultStartTimeout = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultQueueSize    = 256
	persistTimeout      = 5 * time.Second
)

type Options struct {
	Store    Store
	Dialer   Dialer
	Auditor  SessionAuditor
	Limiter  Limiter
	Defaults Defaults

	// IdleTimeout closes a session when neither peer sent a frame for this long.
	IdleTimeout time.Duration
	// MaxDuration is a hard cap on call length.
	MaxDuration time.Duration
	// StartTimeout bounds the wait for the media stream start frame.
	StartTimeout time.Duration
	WriteTimeout time.Duration
	// QueueSize is the per-peer outbound frame buffer; a full buffer drops frames.
	QueueSize int
}

// Bridge creates one Session per media-stream connection. Sessions share no
// mutable state beyond the registry used for shutdown.
type Bridge struct {
	store    Store
	dialer   Dialer
	auditor  SessionAuditor
	limiter  Limiter
	defaults Defaults

	idleTimeout  time.Duration
	maxDuration  time.Duration
	startTimeout time.Duration
	writeTimeout time.Duration
	queueSize    int

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewBridge(opts Options) (*Bridge, error) {
	if opts.Store == nil {
		return nil, errors.New("voice: store required")
	}
	if opts.Dialer == nil {
		return nil, errors.New("voice: dialer required")
	}
	b := &Bridge{
		store:        opts.Store,
		dialer:       opts.Dialer,
		auditor:      opts.Auditor,
		limiter:      opts.Limiter,
		defaults:     opts.Defaults,
		idleTimeout:  opts.IdleTimeout,
		maxDuration:  opts.MaxDuration,
		startTimeout: opts.StartTimeout,
		writeTimeout: opts.WriteTimeout,
		queueSize:    opts.QueueSize,
		sessions:     map[*Session]struct{}{},
	}
	if b.idleTimeout <= 0 {
		b.idleTimeout = defaultIdleTimeout
	}
	if b.maxDuration <= 0 {
		b.maxDuration = defaultMaxDuration
	}
	if b.startTimeout <= 0 {
		b.startTimeout = defaultStartTimeout
	}
	if b.writeTimeout <= 0 {
		b.writeTimeout = defaultWriteTimeout
	}
	if b.queueSize <= 0 {
		b.queueSize = defaultQueueSize
	}
	return b, nil
}

// ActiveSessions reports the number of sessions not yet closed.
func (b *Bridge) ActiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// CloseAll tears down every live session and waits until each one has
// persisted its call log or ctx expires. Used on graceful shutdown, since
// hijacked websocket connections are not tracked by http.Server.
func (b *Bridge) CloseAll(ctx context.Context, reason string) error {
	b.mu.Lock()
	live := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		live = append(live, s)
	}
	b.mu.Unlock()
	for _, s := range live {
		s.shutdown(CloseGoingAway, reason)
	}
	for _, s := range live {
		select {
		case <-s.finished:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bridge) track(s *Session) {
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()
}

func (b *Bridge) untrack(s *Session) {
	b.mu.Lock()
	delete(b.sessions, s)
	b.mu.Unlock()
}

// Serve runs the session for one telephony connection and returns once it
// is closed. params may be partial; blanks are filled from the start frame.
func (b *Bridge) Serve(ctx context.Context, tel Conn, params RoutingParams) {
	s := newSession(ctx, b, tel, params, logger.From(ctx))
	b.track(s)
	defer close(s.finished)
	defer b.untrack(s)
	s.run()
}

// run owns the connect phase and the final persist. Resources taken during
// connect are recorded on the session only from this goroutine, and finish
// runs after every reader and writer has exited.
func (s *Session) run() {
	defer s.finish()
	defer s.wg.Wait()

	if err := s.awaitStart(); err != nil {
		s.log.Warn("media stream start not received", "err", err)
		s.shutdown(ClosePolicyViolation, "missing start frame")
		return
	}
	if !s.params.complete() {
		s.log.Warn("session rejected", "err", ErrMissingRoutingParams,
			"lead_id", s.params.LeadID,
			"campaign_id", s.params.CampaignID,
			"call_sid", s.params.CallSID,
		)
		s.shutdown(ClosePolicyViolation, "missing routing parameters")
		return
	}
	s.log = s.log.With("call_sid", s.params.CallSID, "lead_id", s.params.LeadID, "campaign_id", s.params.CampaignID)

	if err := s.loadContext(); err != nil {
		s.log.Error("session context lookup failed", "err", err)
		s.shutdown(CloseInternalError, "context lookup failed")
		return
	}
	if s.closed() {
		return
	}

	if s.b.limiter != nil {
		ok, err := s.b.limiter.Acquire(s.ctx, s.org.ID)
		switch {
		case err != nil:
			s.log.Warn("live session cap unavailable", "err", err)
		case !ok:
			s.log.Warn("live session cap reached", "organization_id", s.org.ID)
			s.shutdown(CloseTryAgainLater, "too many live calls")
			return
		default:
			s.slotHeld = true
		}
	}
	if s.closed() {
		return
	}

	s.openCallLog()
	if s.closed() {
		return
	}

	s.setState(StateConfiguringSession)
	ai, err := s.b.dialer.Dial(s.ctx)
	if err != nil {
		s.log.Error("session aborted", "err", fmt.Errorf("%w: %v", ErrUpstreamConnect, err))
		s.shutdown(CloseInternalError, "speech provider unavailable")
		return
	}
	if !s.attachAI(ai) {
		_ = ai.Close()
		return
	}

	s.startWriters()
	s.aiOut.send(newSessionUpdate(BuildSessionConfig(s.lead, s.campaign, s.org, s.b.defaults)))

	s.wg.Add(2)
	go s.readTelephony()
	go s.readAI()

	s.watch()
}

// watch blocks until the session closes, enforcing idle and max-duration limits.
func (s *Session) watch() {
	interval := s.b.idleTimeout / 4
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	hard := time.NewTimer(s.b.maxDuration)
	defer hard.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.parent.Done():
			s.shutdown(CloseGoingAway, "server shutting down")
		case <-hard.C:
			s.log.Info("session max duration reached", "max_duration", s.b.maxDuration.String())
			s.shutdown(CloseNormal, "max duration reached")
		case <-tick.C:
			if s.idleFor() > s.b.idleTimeout {
				s.log.Info("session idle timeout", "idle_timeout", s.b.idleTimeout.String())
				s.shutdown(CloseNormal, "idle timeout")
			}
		}
	}
}

func (s *Session) loadContext() error {
	lead, err := s.b.store.GetLead(s.ctx, s.params.LeadID)
	if err != nil {
		return err
	}
	c, err := s.b.store.GetCampaign(s.ctx, s.params.CampaignID)
	if err != nil {
		return err
	}
	if lead.OrganizationID != c.OrganizationID {
		return campaigns.ErrNotFound
	}
	org, err := s.b.store.GetOrganization(s.ctx, c.OrganizationID)
	if err != nil {
		return err
	}
	s.lead, s.campaign, s.org = lead, c, org
	return nil
}

// openCallLog marks the call in progress. A failure here is logged and the
// call continues.
func (s *Session) openCallLog() {
	s.persist = true
	_, err := s.b.store.UpdateCallLog(s.ctx, s.params.CallSID, campaigns.CallLogUpdate{Status: calls.StatusInProgress})
	if err == nil {
		return
	}
	if !errors.Is(err, campaigns.ErrNotFound) {
		s.log.Warn("call log update failed", "err", err)
		return
	}
	now := time.Now().UTC()
	err = s.b.store.CreateCallLog(s.ctx, calls.Log{
		ID:             uuid.NewString(),
		OrganizationID: s.org.ID,
		CampaignID:     s.campaign.ID,
		LeadID:         s.lead.ID,
		CallSID:        s.params.CallSID,
		Status:         calls.StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		s.log.Warn("call log create failed", "err", err)
	}
}

// finish closes the session if no peer did and persists its outcome. It runs
// once, at the end of run.
func (s *Session) finish() {
	s.shutdown(CloseNormal, "session ended")
	s.finalize(s.closeReason)
	s.setState(StateClosed)
}

// finalize must not depend on the session context, which is already canceled.
// A session the AI never acknowledged had no conversation and ends failed.
func (s *Session) finalize(reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.parent), persistTimeout)
	defer cancel()

	lines := s.transcriptLines()
	if s.persist {
		status := calls.StatusFailed
		if s.greeted.Load() {
			status = calls.StatusCompleted
		}
		text := formatTranscript(lines)
		dur := int(time.Since(s.startedAt).Seconds())
		_, err := s.b.store.UpdateCallLog(ctx, s.params.CallSID, campaigns.CallLogUpdate{
			Status:          status,
			Transcript:      &text,
			DurationSeconds: &dur,
		})
		if err != nil {
			s.log.Warn("transcript persist failed", "err", err)
		}
	}

	if s.slotHeld {
		if err := s.b.limiter.Release(ctx, s.org.ID); err != nil {
			s.log.Warn("live session cap release failed", "err", err)
		}
	}

	if s.persist && s.b.auditor != nil {
		if err := s.b.auditor.LogCallSessionClosed(ctx, s.org.ID, s.campaign.ID, s.lead.ID, s.params.CallSID, reason, len(lines)); err != nil {
			s.log.Warn("audit write failed", "err", err)
		}
	}

	s.log.Info("call session closed", "reason", reason, "transcript_lines", len(lines))
}

var (
	ErrMissingRoutingParams = errors.New("voice: missing routing parameters")
	ErrUpstreamConnect      = errors.New("voice: speech provider connect failed")

	errShuttingDown = errors.New("voice: session closed")
)

// writerFailed closes the session when a peer stops accepting writes.
func (s *Session) writerFailed(peer string, err error) {
	if errors.Is(err, errShuttingDown) {
		return
	}
	s.log.Warn("peer write failed", "peer", peer, "err", err)
	s.shutdown(CloseInternalError, peer+" write failed")
}
