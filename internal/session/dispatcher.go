package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/co-gci/internal/audio"
	"github.com/yegors/co-gci/internal/composer"
	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/internal/radio"
	"github.com/yegors/co-gci/internal/speech"
	"github.com/yegors/co-gci/internal/storage/sqlite"
	"github.com/yegors/co-gci/pkg/logger"
)

// ErrChannelBusy aborts a session whose reply could not get the frequency
// within the configured wait.
var ErrChannelBusy = errors.New("channel busy")

// deadlineTick is how often session deadlines are checked. Deadlines are
// seconds-scale, so a coarse tick is fine.
const deadlineTick = 100 * time.Millisecond

// Transmitter keys the radio on the given frequency and plays a reply.
// Satisfied by *radio.Client.
type Transmitter interface {
	Transmit(ctx context.Context, frequency string, pcm []byte) error
}

// CallRecorder persists completed exchanges. Satisfied by
// *sqlite.CallStorage.
type CallRecorder interface {
	StoreCall(record *sqlite.CallRecord) (int64, error)
}

const (
	outcomeAborted     = "aborted"
	outcomeChannelBusy = "channel_busy"
	outcomeSTTFailed   = "stt_failed"
)

// result carries a collaborator completion back into the dispatcher loop.
// from names the state the work belongs to; a result that arrives after the
// session moved on (or aborted) is stale and dropped.
type result struct {
	sessionID  string
	from       State
	transcript string
	pcm        []byte
	err        error
}

// Dispatcher routes radio events to per-pilot sessions and drives each
// session through its lifecycle. One Run loop owns sessions, the frequency
// lock and the wait queue; collaborator calls run in goroutines and report
// back through the results channel.
type Dispatcher struct {
	cfg         config.SessionConfig
	botCallsign string

	composer    *composer.Composer
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	transmitter Transmitter
	calls       CallRecorder
	logger      *logger.Logger

	events  <-chan radio.Event
	results chan result

	// Session state is owned by the Run loop, which takes the write lock
	// for each event it handles; Sessions() takes the read lock.
	mu       sync.RWMutex
	sessions map[string]*Session

	// txHolder maps a frequency to the session currently transmitting on
	// it; txQueue holds session IDs waiting for the frequency in arrival
	// order.
	txHolder map[string]string
	txQueue  map[string][]string

	runCtx context.Context
	now    func() time.Time
}

// NewDispatcher creates a dispatcher consuming events from the given channel.
func NewDispatcher(
	cfg config.SessionConfig,
	botCallsign string,
	events <-chan radio.Event,
	comp *composer.Composer,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	transmitter Transmitter,
	calls CallRecorder,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:         cfg,
		botCallsign: botCallsign,
		composer:    comp,
		transcriber: transcriber,
		synthesizer: synthesizer,
		transmitter: transmitter,
		calls:       calls,
		logger:      log.Named("dispatcher"),
		events:      events,
		results:     make(chan result, 16),
		sessions:    make(map[string]*Session),
		txHolder:    make(map[string]string),
		txQueue:     make(map[string][]string),
		now:         time.Now,
	}
}

// Run processes events until the context is cancelled or the event channel
// closes. It must be called exactly once.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.runCtx = ctx
	d.logger.Info("Session dispatcher started")

	ticker := time.NewTicker(deadlineTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Session dispatcher stopping")
			return ctx.Err()
		case event, ok := <-d.events:
			if !ok {
				d.logger.Info("Radio event channel closed")
				return nil
			}
			d.mu.Lock()
			d.handleRadioEvent(event)
			d.mu.Unlock()
		case res := <-d.results:
			d.mu.Lock()
			d.handleResult(res)
			d.mu.Unlock()
		case now := <-ticker.C:
			d.mu.Lock()
			d.expireDeadlines(now)
			d.mu.Unlock()
		}
	}
}

// Sessions returns a snapshot of sessions currently in flight.
func (d *Dispatcher) Sessions() []Info {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Info, 0, len(d.sessions))
	for _, sess := range d.sessions {
		out = append(out, sess.info())
	}
	return out
}

func (d *Dispatcher) handleRadioEvent(event radio.Event) {
	switch event.Type {
	case radio.EventTxStart:
		if _, exists := d.sessions[event.Pilot]; exists {
			// The pilot keyed up again before their previous exchange
			// finished. Let the reply in flight complete.
			d.logger.Debug("Transmission during active session, ignoring",
				logger.String("pilot", event.Pilot))
			return
		}
		sess := newSession(event.Pilot, event.Frequency, d.now())
		sess.Deadline = d.now().Add(d.cfg.ReceiveTimeout())
		d.putSession(sess)
		d.logger.Debug("Session opened",
			logger.String("pilot", event.Pilot),
			logger.String("session_id", sess.ID))

	case radio.EventAudio:
		sess, ok := d.sessions[event.Pilot]
		if !ok || sess.State != StateReceiving {
			return
		}
		if len(sess.audio)+len(event.Audio) > audio.MaxTransmissionBytes {
			d.logger.Warn("Transmission exceeded size bound, aborting session",
				logger.String("pilot", event.Pilot),
				logger.Int("buffered", len(sess.audio)))
			d.abort(sess, outcomeAborted)
			return
		}
		sess.audio = append(sess.audio, event.Audio...)

	case radio.EventTxEnd:
		sess, ok := d.sessions[event.Pilot]
		if !ok || sess.State != StateReceiving {
			return
		}
		d.startTranscribe(sess)
	}
}

func (d *Dispatcher) startTranscribe(sess *Session) {
	sess.State = StateTranscribing
	sess.Deadline = d.now().Add(d.cfg.TranscribeTimeout())

	pcm := sess.audio
	sessionID := sess.ID
	go func() {
		ctx, cancel := context.WithTimeout(d.runCtx, d.cfg.TranscribeTimeout())
		defer cancel()
		text, err := d.transcriber.Transcribe(ctx, pcm)
		d.postResult(result{sessionID: sessionID, from: StateTranscribing, transcript: text, err: err})
	}()
}

func (d *Dispatcher) handleResult(res result) {
	sess := d.sessionByID(res.sessionID)
	if sess == nil {
		return
	}
	if sess.State != res.from {
		d.logger.Debug("Stale collaborator result",
			logger.String("session_id", res.sessionID),
			logger.String("state", sess.State.String()))
		return
	}

	switch res.from {
	case StateTranscribing:
		d.onTranscribed(sess, res)
	case StateSynthesizing:
		d.onSynthesized(sess, res)
	case StateTransmitting:
		d.onTransmitted(sess, res)
	}
}

func (d *Dispatcher) onTranscribed(sess *Session, res result) {
	now := d.now()
	sess.State = StateComposing
	sess.Deadline = time.Time{}

	if res.err != nil {
		// The pilot said something; ask them to repeat it rather than
		// going silent.
		d.logger.Error("Transcription failed",
			logger.String("pilot", sess.Pilot),
			logger.Error(res.err))
		sess.request = composer.RadioRequest{Pilot: sess.Pilot, Kind: composer.RequestUnknown, Time: now}
		reply, _ := d.composer.HandleRequest(now, sess.request)
		reply.Outcome = outcomeSTTFailed
		sess.reply = reply
		d.startSynthesize(sess)
		return
	}

	sess.transcript = res.transcript
	req, addressed := composer.Classify(res.transcript, d.botCallsign, sess.Pilot, now)
	if !addressed {
		// Chatter between pilots. Not ours to answer.
		d.logger.Debug("Transmission not addressed to controller",
			logger.String("pilot", sess.Pilot),
			logger.String("transcript", res.transcript))
		d.removeSession(sess)
		return
	}

	sess.request = req
	reply, err := d.composer.HandleRequest(now, req)
	if err != nil {
		d.logger.Info("Request did not produce a tactical call",
			logger.String("pilot", sess.Pilot),
			logger.String("kind", req.Kind.String()),
			logger.Error(err))
	}
	sess.reply = reply
	d.startSynthesize(sess)
}

func (d *Dispatcher) startSynthesize(sess *Session) {
	sess.State = StateSynthesizing
	sess.Deadline = d.now().Add(d.cfg.SynthesizeTimeout())

	script := sess.reply.Script
	sessionID := sess.ID
	go func() {
		ctx, cancel := context.WithTimeout(d.runCtx, d.cfg.SynthesizeTimeout())
		defer cancel()
		pcm, err := d.synthesizer.Synthesize(ctx, script)
		d.postResult(result{sessionID: sessionID, from: StateSynthesizing, pcm: pcm, err: err})
	}()
}

func (d *Dispatcher) onSynthesized(sess *Session, res result) {
	if res.err != nil {
		d.logger.Error("Synthesis failed",
			logger.String("pilot", sess.Pilot),
			logger.Error(res.err))
		d.abort(sess, outcomeAborted)
		return
	}
	sess.pcm = res.pcm

	if holder, busy := d.txHolder[sess.Frequency]; busy {
		// Another reply is on the air. Wait our turn, bounded.
		d.logger.Debug("Frequency busy, queueing reply",
			logger.String("pilot", sess.Pilot),
			logger.String("holder", holder))
		sess.waitingTx = true
		sess.Deadline = d.now().Add(d.cfg.TransmitWait())
		d.txQueue[sess.Frequency] = append(d.txQueue[sess.Frequency], sess.ID)
		return
	}
	d.startTransmit(sess)
}

func (d *Dispatcher) startTransmit(sess *Session) {
	sess.State = StateTransmitting
	sess.Deadline = time.Time{}
	sess.waitingTx = false
	d.txHolder[sess.Frequency] = sess.ID

	pcm := sess.pcm
	frequency := sess.Frequency
	sessionID := sess.ID
	go func() {
		err := d.transmitter.Transmit(d.runCtx, frequency, pcm)
		d.postResult(result{sessionID: sessionID, from: StateTransmitting, err: err})
	}()
}

func (d *Dispatcher) onTransmitted(sess *Session, res result) {
	d.releaseFrequency(sess)
	if res.err != nil {
		d.logger.Error("Transmission failed",
			logger.String("pilot", sess.Pilot),
			logger.Error(res.err))
		d.abort(sess, outcomeAborted)
		return
	}

	d.logger.Info("Exchange complete",
		logger.String("pilot", sess.Pilot),
		logger.String("outcome", string(sess.reply.Outcome)),
		logger.Duration("elapsed", d.now().Sub(sess.StartedAt)))
	d.recordCall(sess, string(sess.reply.Outcome))
	d.removeSession(sess)
}

// expireDeadlines aborts every session whose current state overran its
// deadline.
func (d *Dispatcher) expireDeadlines(now time.Time) {
	for _, sess := range d.sessions {
		if sess.Deadline.IsZero() || !now.After(sess.Deadline) {
			continue
		}
		outcome := outcomeAborted
		if sess.waitingTx {
			outcome = outcomeChannelBusy
			d.logger.Warn("Reply dropped, frequency never cleared",
				logger.String("pilot", sess.Pilot),
				logger.Error(ErrChannelBusy))
		} else {
			d.logger.Warn("Session deadline expired",
				logger.String("pilot", sess.Pilot),
				logger.String("state", sess.State.String()))
		}
		d.abort(sess, outcome)
	}
}

// abort tears the session down. The frequency lock is released
// unconditionally so a failure can never wedge the channel.
func (d *Dispatcher) abort(sess *Session, outcome string) {
	d.releaseFrequency(sess)
	sess.State = StateAborted
	d.recordCall(sess, outcome)
	d.removeSession(sess)
}

// releaseFrequency drops the session's hold or queue slot on its frequency
// and, if the frequency is now free, puts the next waiter on the air.
func (d *Dispatcher) releaseFrequency(sess *Session) {
	freq := sess.Frequency

	if queue := d.txQueue[freq]; len(queue) > 0 {
		filtered := queue[:0]
		for _, id := range queue {
			if id != sess.ID {
				filtered = append(filtered, id)
			}
		}
		d.txQueue[freq] = filtered
	}

	if d.txHolder[freq] != sess.ID {
		return
	}
	delete(d.txHolder, freq)

	for len(d.txQueue[freq]) > 0 {
		nextID := d.txQueue[freq][0]
		d.txQueue[freq] = d.txQueue[freq][1:]
		next := d.sessionByID(nextID)
		if next == nil || !next.waitingTx {
			continue
		}
		d.startTransmit(next)
		return
	}
}

func (d *Dispatcher) recordCall(sess *Session, outcome string) {
	if d.calls == nil {
		return
	}
	record := &sqlite.CallRecord{
		Pilot:       sess.Pilot,
		Frequency:   sess.Frequency,
		RequestKind: sess.request.Kind.String(),
		Transcript:  sess.transcript,
		ReplyScript: sess.reply.Script,
		Outcome:     outcome,
		Timestamp:   sess.StartedAt,
		CreatedAt:   d.now(),
	}
	if _, err := d.calls.StoreCall(record); err != nil {
		d.logger.Error("Failed to store call record",
			logger.String("pilot", sess.Pilot),
			logger.Error(err))
	}
}

// postResult delivers a collaborator result without blocking forever if the
// loop already exited.
func (d *Dispatcher) postResult(res result) {
	select {
	case d.results <- res:
	case <-d.runCtx.Done():
	}
}

func (d *Dispatcher) putSession(sess *Session) {
	d.sessions[sess.Pilot] = sess
}

func (d *Dispatcher) removeSession(sess *Session) {
	delete(d.sessions, sess.Pilot)
}

func (d *Dispatcher) sessionByID(id string) *Session {
	for _, sess := range d.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}
