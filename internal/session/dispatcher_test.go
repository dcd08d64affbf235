package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yegors/co-gci/internal/audio"
	"github.com/yegors/co-gci/internal/composer"
	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/internal/radio"
	"github.com/yegors/co-gci/internal/storage/sqlite"
	"github.com/yegors/co-gci/internal/tracks"
	"github.com/yegors/co-gci/pkg/logger"
)

type fakeTranscriber struct {
	text string
	err  error
	// block, when non-nil, holds the call until closed.
	block chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type fakeSynthesizer struct {
	mu      sync.Mutex
	scripts []string
	err     error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.scripts = append(f.scripts, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte(text), nil
}

func (f *fakeSynthesizer) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.scripts))
	copy(out, f.scripts)
	return out
}

type fakeTransmitter struct {
	mu          sync.Mutex
	payloads    [][]byte
	frequencies []string
	// gate, when non-nil, holds each transmission on the air until it is
	// closed.
	gate chan struct{}
}

func (f *fakeTransmitter) Transmit(ctx context.Context, frequency string, pcm []byte) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, pcm)
	f.frequencies = append(f.frequencies, frequency)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeTransmitter) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.payloads))
	copy(out, f.payloads)
	return out
}

func (f *fakeTransmitter) sentFrequencies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frequencies))
	copy(out, f.frequencies)
	return out
}

type fakeCallLog struct {
	mu      sync.Mutex
	records []*sqlite.CallRecord
}

func (f *fakeCallLog) StoreCall(record *sqlite.CallRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return int64(len(f.records)), nil
}

func (f *fakeCallLog) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.records {
		out = append(out, r.Outcome)
	}
	return out
}

type dispatcherFixture struct {
	events      chan radio.Event
	dispatcher  *Dispatcher
	transcriber *fakeTranscriber
	synthesizer *fakeSynthesizer
	transmitter *fakeTransmitter
	calls       *fakeCallLog
	cancel      context.CancelFunc
}

func newFixture(t *testing.T, cfg config.SessionConfig) *dispatcherFixture {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	store := tracks.NewStore(time.Minute, log)
	comp := composer.New(store, "Magic", 100, log)

	f := &dispatcherFixture{
		events:      make(chan radio.Event, 16),
		transcriber: &fakeTranscriber{},
		synthesizer: &fakeSynthesizer{},
		transmitter: &fakeTransmitter{},
		calls:       &fakeCallLog{},
	}
	f.dispatcher = NewDispatcher(cfg, "Magic",
		f.events, comp, f.transcriber, f.synthesizer, f.transmitter, f.calls, log)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.dispatcher.Run(ctx)
	t.Cleanup(cancel)
	return f
}

func defaultSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		ReceiveTimeoutSecs:    5,
		TranscribeTimeoutSecs: 5,
		SynthesizeTimeoutSecs: 5,
		TransmitWaitSecs:      5,
	}
}

func (f *dispatcherFixture) transmission(pilot string) {
	f.events <- radio.Event{Type: radio.EventTxStart, Pilot: pilot, Frequency: "251000000"}
	f.events <- radio.Event{Type: radio.EventAudio, Pilot: pilot, Frequency: "251000000", Audio: make([]byte, 640)}
	f.events <- radio.Event{Type: radio.EventTxEnd, Pilot: pilot, Frequency: "251000000"}
}

// waitFor polls until the condition holds or the test deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRadioCheckExchange(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.text = "Magic, Uzi 1-1, radio check"

	f.transmission("Uzi 1-1")

	waitFor(t, "reply transmission", func() bool { return len(f.transmitter.sent()) == 1 })

	script := string(f.transmitter.sent()[0])
	if !strings.Contains(script, "Uzi 1-1, Magic") || !strings.Contains(script, "five by five") {
		t.Errorf("unexpected reply script: %q", script)
	}

	waitFor(t, "call record", func() bool { return len(f.calls.outcomes()) == 1 })
	if got := f.calls.outcomes()[0]; got != "radio_check" {
		t.Errorf("outcome = %q, want radio_check", got)
	}
	waitFor(t, "session teardown", func() bool { return len(f.dispatcher.Sessions()) == 0 })
}

func TestUnaddressedChatterIsDropped(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.text = "two, come starboard"

	f.transmission("Uzi 1-1")

	waitFor(t, "session teardown", func() bool { return len(f.dispatcher.Sessions()) == 0 })
	time.Sleep(50 * time.Millisecond)
	if n := len(f.transmitter.sent()); n != 0 {
		t.Errorf("chatter produced %d transmissions", n)
	}
	if n := len(f.calls.outcomes()); n != 0 {
		t.Errorf("chatter produced %d call records", n)
	}
}

func TestTranscriptionFailureAsksForRepeat(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.err = errors.New("upstream 500")

	f.transmission("Uzi 1-1")

	waitFor(t, "reply transmission", func() bool { return len(f.transmitter.sent()) == 1 })
	script := string(f.transmitter.sent()[0])
	if !strings.Contains(script, "say again") {
		t.Errorf("reply script = %q, want a say-again request", script)
	}
	waitFor(t, "call record", func() bool { return len(f.calls.outcomes()) == 1 })
	if got := f.calls.outcomes()[0]; got != "stt_failed" {
		t.Errorf("outcome = %q, want stt_failed", got)
	}
}

func TestSynthesisFailureAbortsSession(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.text = "Magic, Uzi 1-1, radio check"
	f.synthesizer.err = errors.New("tts unavailable")

	f.transmission("Uzi 1-1")

	waitFor(t, "call record", func() bool { return len(f.calls.outcomes()) == 1 })
	if got := f.calls.outcomes()[0]; got != "aborted" {
		t.Errorf("outcome = %q, want aborted", got)
	}
	if n := len(f.transmitter.sent()); n != 0 {
		t.Errorf("aborted session transmitted %d times", n)
	}
	waitFor(t, "session teardown", func() bool { return len(f.dispatcher.Sessions()) == 0 })
}

func TestTranscribeTimeoutAbortsAndStopsRouting(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.block = make(chan struct{})
	defer close(f.transcriber.block)

	// Deadlines are compared against wall clock ticks; backdating the
	// session clock makes every new deadline already expired.
	f.dispatcher.mu.Lock()
	f.dispatcher.now = func() time.Time { return time.Now().Add(-time.Hour) }
	f.dispatcher.mu.Unlock()

	f.transmission("Uzi 1-1")

	waitFor(t, "abort record", func() bool { return len(f.calls.outcomes()) == 1 })
	if got := f.calls.outcomes()[0]; got != "aborted" {
		t.Errorf("outcome = %q, want aborted", got)
	}
	waitFor(t, "session teardown", func() bool { return len(f.dispatcher.Sessions()) == 0 })

	// The aborted session must no longer receive events. Audio for the
	// pilot is dropped on the floor rather than resurrecting the exchange.
	f.events <- radio.Event{Type: radio.EventAudio, Pilot: "Uzi 1-1", Frequency: "251000000", Audio: make([]byte, 640)}
	f.events <- radio.Event{Type: radio.EventTxEnd, Pilot: "Uzi 1-1", Frequency: "251000000"}
	time.Sleep(100 * time.Millisecond)
	if n := len(f.transmitter.sent()); n != 0 {
		t.Errorf("aborted session transmitted %d times", n)
	}
	if n := len(f.calls.outcomes()); n != 1 {
		t.Errorf("aborted session produced %d records, want 1", n)
	}
}

func TestReplyAirsOnCallersFrequency(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.text = "Magic, Uzi 1-1, radio check"

	// The pilot keys a channel other than the contention default; the reply
	// must go out on the same one.
	f.events <- radio.Event{Type: radio.EventTxStart, Pilot: "Uzi 1-1", Frequency: "124500000"}
	f.events <- radio.Event{Type: radio.EventAudio, Pilot: "Uzi 1-1", Frequency: "124500000", Audio: make([]byte, 640)}
	f.events <- radio.Event{Type: radio.EventTxEnd, Pilot: "Uzi 1-1", Frequency: "124500000"}

	waitFor(t, "reply transmission", func() bool { return len(f.transmitter.sent()) == 1 })
	if got := f.transmitter.sentFrequencies()[0]; got != "124500000" {
		t.Errorf("reply aired on %q, want 124500000", got)
	}
}

func TestOversizedTransmissionAborts(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())

	f.events <- radio.Event{Type: radio.EventTxStart, Pilot: "Uzi 1-1", Frequency: "251000000"}
	f.events <- radio.Event{
		Type: radio.EventAudio, Pilot: "Uzi 1-1", Frequency: "251000000",
		Audio: make([]byte, audio.MaxTransmissionBytes+1),
	}

	waitFor(t, "abort record", func() bool { return len(f.calls.outcomes()) == 1 })
	if got := f.calls.outcomes()[0]; got != "aborted" {
		t.Errorf("outcome = %q, want aborted", got)
	}
	if n := len(f.transmitter.sent()); n != 0 {
		t.Errorf("oversized transmission produced %d replies", n)
	}
}

func TestFrequencyAllowsOneTransmitterAtATime(t *testing.T) {
	f := newFixture(t, defaultSessionConfig())
	f.transcriber.text = "Magic, radio check"
	f.transmitter.gate = make(chan struct{})

	f.transmission("Uzi 1-1")
	waitFor(t, "first reply on air", func() bool { return len(f.transmitter.sent()) == 1 })

	f.transmission("Dodge 2-1")
	waitFor(t, "second reply synthesized", func() bool { return len(f.synthesizer.spoken()) == 2 })

	// While the first reply holds the frequency the second session must
	// queue, not key up.
	time.Sleep(200 * time.Millisecond)
	if n := len(f.transmitter.sent()); n != 1 {
		t.Fatalf("%d transmissions while frequency held, want 1", n)
	}
	transmitting := 0
	for _, info := range f.dispatcher.Sessions() {
		if info.State == StateTransmitting.String() {
			transmitting++
		}
	}
	if transmitting != 1 {
		t.Errorf("%d sessions transmitting, want 1", transmitting)
	}

	// Releasing the frequency puts the queued reply on the air. A closed
	// gate no longer blocks.
	close(f.transmitter.gate)
	waitFor(t, "queued reply on air", func() bool { return len(f.transmitter.sent()) == 2 })
	waitFor(t, "all sessions complete", func() bool { return len(f.dispatcher.Sessions()) == 0 })
}

func TestChannelBusyWaitIsBounded(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.TransmitWaitSecs = 0 // give up immediately
	f := newFixture(t, cfg)
	f.transcriber.text = "Magic, radio check"
	f.transmitter.gate = make(chan struct{})
	defer close(f.transmitter.gate)

	f.transmission("Uzi 1-1")
	waitFor(t, "first reply on air", func() bool { return len(f.transmitter.sent()) == 1 })

	f.transmission("Dodge 2-1")
	waitFor(t, "channel busy abort", func() bool {
		for _, outcome := range f.calls.outcomes() {
			if outcome == "channel_busy" {
				return true
			}
		}
		return false
	})
	if n := len(f.transmitter.sent()); n != 1 {
		t.Errorf("%d transmissions, want 1", n)
	}
}
