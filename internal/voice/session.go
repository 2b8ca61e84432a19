package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"propdial/internal/campaigns"
	"propdial/internal/telephony"
)

type State int32

const (
	StateConnecting State = iota
	StateConfiguringSession
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConfiguringSession:
		return "configuring_session"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RoutingParams identify the call a media stream belongs to.
type RoutingParams struct {
	LeadID     string
	CampaignID string
	CallSID    string
}

func (p RoutingParams) complete() bool {
	return p.LeadID != "" && p.CampaignID != "" && p.CallSID != ""
}

// fill sets blank fields from the start frame; query values win.
func (p *RoutingParams) fill(custom map[string]string, callSID string) {
	if p.LeadID == "" {
		p.LeadID = strings.TrimSpace(custom["leadId"])
	}
	if p.CampaignID == "" {
		p.CampaignID = strings.TrimSpace(custom["campaignId"])
	}
	if p.CallSID == "" {
		p.CallSID = strings.TrimSpace(custom["callSid"])
	}
	if p.CallSID == "" {
		p.CallSID = strings.TrimSpace(callSID)
	}
}

const (
	SpeakerAI   = "AI"
	SpeakerLead = "Lead"
)

type TranscriptLine struct {
	Speaker string
	Text    string
}

func formatTranscript(lines []TranscriptLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Speaker)
		b.WriteString(": ")
		b.WriteString(l.Text)
	}
	return b.String()
}

// Session owns both peer connections of one call, its transcript and its
// close guard. Event handlers receive the session explicitly.
type Session struct {
	b      *Bridge
	log    *slog.Logger
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	params    RoutingParams
	streamSID string
	lead      campaigns.Lead
	campaign  campaigns.Campaign
	org       campaigns.Organization

	tel    Conn
	telOut *peerWriter

	aiMu  sync.Mutex
	ai    Conn
	aiOut *peerWriter

	state        atomic.Int32
	greeted      atomic.Bool
	stopping     atomic.Bool
	lastActivity atomic.Int64
	startedAt    time.Time

	// persist and slotHeld belong to the run goroutine.
	persist  bool
	slotHeld bool

	tmu        sync.Mutex
	transcript []TranscriptLine

	closeOnce   sync.Once
	closeReason string
	done        chan struct{}
	finished    chan struct{}
	wg          sync.WaitGroup
}

func newSession(parent context.Context, b *Bridge, tel Conn, params RoutingParams, log *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		b:         b,
		log:       log,
		parent:    parent,
		ctx:       ctx,
		cancel:    cancel,
		params:    params,
		tel:       tel,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.Debug("session state", "from", prev.String(), "to", st.String())
	}
}

func (s *Session) touch() { s.lastActivity.Store(time.Now().UnixNano()) }

func (s *Session) idleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

func (s *Session) transcriptLines() []TranscriptLine {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	out := make([]TranscriptLine, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) appendTranscript(speaker, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.tmu.Lock()
	s.transcript = append(s.transcript, TranscriptLine{Speaker: speaker, Text: text})
	s.tmu.Unlock()
}

// awaitStart reads until the media stream start frame arrives.
func (s *Session) awaitStart() error {
	_ = s.tel.SetReadDeadline(time.Now().Add(s.b.startTimeout))
	defer func() { _ = s.tel.SetReadDeadline(time.Time{}) }()

	for {
		_, data, err := s.tel.ReadMessage()
		if err != nil {
			return err
		}
		s.touch()
		f, err := telephony.DecodeInboundFrame(data)
		if err != nil {
			s.log.Warn("telephony frame decode failed", "err", err)
			continue
		}
		if f.Event != telephony.EventStart || f.Start == nil {
			s.log.Debug("telephony frame before start", "event", f.Event)
			continue
		}
		s.streamSID = f.StreamSid
		s.params.fill(f.Start.CustomParameters, f.Start.CallSid)
		return nil
	}
}

// attachAI records the AI connection unless the session already closed.
func (s *Session) attachAI(ai Conn) bool {
	s.aiMu.Lock()
	defer s.aiMu.Unlock()
	if s.closed() {
		return false
	}
	s.ai = ai
	return true
}

func (s *Session) startWriters() {
	s.telOut = newPeerWriter("telephony", s.tel, s.b.queueSize, s.b.writeTimeout, s.log)
	s.aiOut = newPeerWriter("ai", s.ai, s.b.queueSize, s.b.writeTimeout, s.log)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.telOut.run(s.ctx); err != nil {
			s.writerFailed("telephony", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.aiOut.run(s.ctx); err != nil {
			s.writerFailed("ai", err)
		}
	}()
}

func (s *Session) readTelephony() {
	defer s.wg.Done()
	for {
		_, data, err := s.tel.ReadMessage()
		if err != nil {
			s.peerClosed("telephony", err)
			return
		}
		s.touch()
		f, err := telephony.DecodeInboundFrame(data)
		if err != nil {
			s.log.Warn("telephony frame decode failed", "err", err)
			continue
		}
		s.handleTelephony(f)
	}
}

func (s *Session) handleTelephony(f telephony.InboundFrame) {
	switch f.Event {
	case telephony.EventMedia:
		s.aiOut.send(newAudioAppend(f.Media.Payload))
	case telephony.EventStop:
		s.stopping.Store(true)
		s.log.Info("media stream stopped")
	case telephony.EventMark:
		if f.Mark != nil {
			s.log.Debug("ai response played", "response_id", f.Mark.Name)
		}
	case telephony.EventClear, telephony.EventClearAudio, telephony.EventStart, telephony.EventConnected:
		s.log.Debug("telephony control frame", "event", f.Event)
	default:
		s.log.Debug("telephony frame ignored", "event", f.Event)
	}
}

func (s *Session) readAI() {
	defer s.wg.Done()
	for {
		_, data, err := s.ai.ReadMessage()
		if err != nil {
			s.peerClosed("ai", err)
			return
		}
		s.touch()
		ev, err := DecodeServerEvent(data)
		if err != nil {
			s.log.Warn("ai event decode failed", "err", err)
			continue
		}
		s.handleAI(ev)
	}
}

func (s *Session) handleAI(ev ServerEvent) {
	switch e := ev.(type) {
	case SessionUpdated:
		if s.greeted.CompareAndSwap(false, true) {
			s.aiOut.send(newGreetingRequest())
			s.setState(StateActive)
		}
	case AudioDelta:
		if e.Delta != "" {
			s.telOut.send(telephony.NewMediaFrame(s.streamSID, e.Delta))
		}
	case InputTranscriptCompleted:
		s.appendTranscript(SpeakerLead, e.Transcript)
	case ResponseTranscriptDone:
		s.appendTranscript(SpeakerAI, e.Transcript)
	case SpeechStarted:
		// Callee barged in; drop AI audio Twilio has not played yet.
		s.telOut.send(telephony.NewClearFrame(s.streamSID))
	case ResponseDone:
		s.log.Debug("ai response done", "response_id", e.ResponseID, "status", e.Status)
		// Twilio echoes the mark once the response audio has played out.
		if e.ResponseID != "" {
			s.telOut.send(telephony.NewMarkFrame(s.streamSID, e.ResponseID))
		}
	case ErrorEvent:
		s.log.Warn("ai error event", "code", e.Code, "type", e.Kind, "message", e.Message)
	case Unrecognized:
		s.log.Debug("ai event ignored", "type", e.Type)
	}
}

func (s *Session) peerClosed(peer string, err error) {
	if s.closed() {
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.stopping.Load() {
		s.log.Warn("peer connection lost", "peer", peer, "err", err)
	}
	s.shutdown(CloseNormal, peer+" closed")
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// shutdown closes both peers exactly once, whichever side triggers it. The
// call log is persisted later by finish.
func (s *Session) shutdown(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeReason = reason
		s.setState(StateClosing)
		s.cancel()

		deadline := time.Now().Add(s.b.writeTimeout)
		_ = s.tel.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = s.tel.Close()

		s.aiMu.Lock()
		ai := s.ai
		close(s.done)
		s.aiMu.Unlock()
		if ai != nil {
			_ = ai.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(CloseNormal, ""), deadline)
			_ = ai.Close()
		}
	})
}

// peerWriter serializes writes to one connection. send never blocks: a full
// queue drops the frame so a slow peer cannot stall the other read loop.
type peerWriter struct {
	name    string
	conn    Conn
	out     chan []byte
	timeout time.Duration
	log     *slog.Logger
	dropped atomic.Int64
}

func newPeerWriter(name string, conn Conn, size int, timeout time.Duration, log *slog.Logger) *peerWriter {
	return &peerWriter{name: name, conn: conn, out: make(chan []byte, size), timeout: timeout, log: log}
}

func (w *peerWriter) send(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		w.log.Error("outbound frame encode failed", "peer", w.name, "err", err)
		return false
	}
	select {
	case w.out <- b:
		return true
	default:
		if n := w.dropped.Add(1); n == 1 || n%100 == 0 {
			w.log.Warn("outbound queue full, frame dropped", "peer", w.name, "dropped", n)
		}
		return false
	}
}

func (w *peerWriter) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return errShuttingDown
		case b := <-w.out:
			if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
				return err
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
					return errShuttingDown
				}
				return err
			}
		}
	}
}
