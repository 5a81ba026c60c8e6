// Package voice runs the spoken ticket-creation conversation: record an
// utterance, transcribe it, ask the assistant, speak the reply, and archive
// the whole conversation once the assistant announces the ticket.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/team-spoved/spoved/internal/audio"
	"github.com/team-spoved/spoved/internal/client"
	"github.com/team-spoved/spoved/internal/config"
	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
)

type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "processing:stt"
	StateQuerying     State = "processing:ai"
	StateSynthesizing State = "processing:tts"
	StatePlaying      State = "playing"
	StateArchiving    State = "archiving"
)

const defaultQuietWindow = 1500 * time.Millisecond

var (
	// ErrBusy is returned by StartRecording while a turn is in flight.
	ErrBusy      = errors.New("voice: a recording, reply or upload is already in progress")
	ErrNoAudio   = errors.New("voice: no audio recorded")
	ErrCompleted = errors.New("voice: conversation already completed")
	ErrCleared   = errors.New("voice: conversation cleared")
)

// Message is one line of the conversation log.
type Message struct {
	Role audio.Role
	Text string
	At   time.Time
}

// Assistant is the speech and AI backend. *client.VoiceClient satisfies it.
type Assistant interface {
	SpeechToText(ctx context.Context, audio []byte) (string, error)
	QueryAI(ctx context.Context, prompt, history string) (*client.QueryAIResponse, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
}

// Archiver stores the merged conversation. *client.MediaClient satisfies it.
type Archiver interface {
	Create(ctx context.Context, up model.MediaUpload) (*model.Media, error)
}

type Config struct {
	MaxRecording     time.Duration
	CompletionPhrase string
	ArchiveRate      int
	ArchiveMaxBytes  int
	QuietLevel       float64
	// QuietWindow is how long input must stay below QuietLevel before
	// OnQuietInput fires.
	QuietWindow time.Duration
}

// Callbacks are invoked from the turn goroutine, never with internal locks
// held. Any of them may be nil.
type Callbacks struct {
	OnState      func(State)
	OnMessage    func(Message)
	OnLevel      func(level float64)
	OnQuietInput func()
	OnError      func(err error)
	// OnComplete fires once after the completion phrase, with the archived
	// media or the archive error. A nil media with a nil error means there
	// was nothing to archive.
	OnComplete func(media *model.Media, err error)
}

type Session struct {
	mic     device.Microphone
	player  device.Player
	ai      Assistant
	archive Archiver
	cfg     Config
	cb      Callbacks
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	gen       uint64
	completed bool
	history   string
	messages  []Message
	segments  []audio.Segment
	turn      *Turn
	stopPlay  context.CancelFunc
}

type Option func(*Session)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l.With().Str("component", "voice").Logger() }
}

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func NewSession(mic device.Microphone, player device.Player, ai Assistant, archive Archiver, cfg Config, cb Callbacks, opts ...Option) *Session {
	cfg.MaxRecording = config.ClampRecording(cfg.MaxRecording)
	if cfg.ArchiveRate <= 0 {
		cfg.ArchiveRate = 16000
	}
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = defaultQuietWindow
	}
	s := &Session{
		mic:     mic,
		player:  player,
		ai:      ai,
		archive: archive,
		cfg:     cfg,
		cb:      cb,
		log:     zerolog.Nop(),
		now:     time.Now,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Turn is one record-to-playback cycle.
type Turn struct {
	stopRec context.CancelFunc
	done    chan struct{}

	transcript string
	reply      string
	err        error
}

// Stop ends the recording early; whatever was captured is processed.
func (t *Turn) Stop() { t.stopRec() }

func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn has finished playback (or failed).
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	}
}

// Transcript and Reply are valid after Done.
func (t *Turn) Transcript() string { return t.transcript }
func (t *Turn) Reply() string      { return t.reply }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Session) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// StartRecording acquires the microphone and begins a turn. While another
// turn is recording, processing, playing or archiving it returns ErrBusy
// without touching the device or the state.
func (s *Session) StartRecording(ctx context.Context) (*Turn, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.completed {
		s.mu.Unlock()
		return nil, ErrCompleted
	}
	s.state = StateRecording
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.mic.Open(ctx, device.MicConstraints{
		NoiseSuppression: true,
		EchoCancellation: true,
		SampleRate:       s.cfg.ArchiveRate,
		Channels:         1,
	})
	if err != nil {
		s.setState(gen, StateIdle)
		err = fmt.Errorf("start recording: %w", err)
		s.fail(err)
		return nil, err
	}

	recCtx, stopRec := context.WithTimeout(ctx, s.cfg.MaxRecording)
	t := &Turn{stopRec: stopRec, done: make(chan struct{})}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stopRec()
		stream.Stop()
		return nil, ErrCleared
	}
	s.turn = t
	s.mu.Unlock()
	s.emitState(StateRecording)

	go s.run(ctx, recCtx, gen, t, stream)
	return t, nil
}

// Clear stops any recording and playback and forgets the conversation.
// Requests already in flight are not aborted; their results are ignored.
func (s *Session) Clear() {
	s.mu.Lock()
	s.gen++
	if s.turn != nil {
		s.turn.stopRec()
		s.turn = nil
	}
	if s.stopPlay != nil {
		s.stopPlay()
		s.stopPlay = nil
	}
	s.messages = nil
	s.history = ""
	s.segments = nil
	s.completed = false
	s.state = StateIdle
	s.mu.Unlock()
	s.log.Debug().Msg("conversation cleared")
	s.emitState(StateIdle)
}

func (s *Session) run(ctx, recCtx context.Context, gen uint64, t *Turn, stream device.AudioStream) {
	defer close(t.done)
	err := s.turnPipeline(ctx, recCtx, gen, t, stream)
	t.err = err

	s.mu.Lock()
	current := s.gen == gen
	if current && s.turn == t {
		s.turn = nil
	}
	completed := current && s.completed
	s.mu.Unlock()

	if err != nil {
		s.setState(gen, StateIdle)
		if current && !errors.Is(err, ErrCleared) {
			s.fail(err)
		}
		return
	}
	if completed {
		s.setState(gen, StateArchiving)
		media, aerr := s.archiveConversation(ctx, gen)
		s.setState(gen, StateIdle)
		if s.cb.OnComplete != nil {
			s.cb.OnComplete(media, aerr)
		}
		return
	}
	s.setState(gen, StateIdle)
}

func (s *Session) turnPipeline(ctx, recCtx context.Context, gen uint64, t *Turn, stream device.AudioStream) error {
	samples, rate, err := s.record(ctx, recCtx, stream)
	t.stopRec()
	if err != nil {
		return err
	}
	if !s.current(gen) {
		return ErrCleared
	}
	if len(samples) == 0 {
		return ErrNoAudio
	}
	blob, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		return err
	}

	if !s.setState(gen, StateTranscribing) {
		return ErrCleared
	}
	transcript, err := s.ai.SpeechToText(ctx, blob)
	if err != nil {
		return err
	}
	t.transcript = transcript
	if !s.appendTurn(gen, audio.RoleUser, transcript, blob) {
		return ErrCleared
	}

	if !s.setState(gen, StateQuerying) {
		return ErrCleared
	}
	resp, err := s.ai.QueryAI(ctx, transcript, s.History())
	if err != nil {
		return err
	}
	t.reply = resp.Response
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrCleared
	}
	s.history = resp.UpdatedHistory
	s.mu.Unlock()

	if !s.setState(gen, StateSynthesizing) {
		return ErrCleared
	}
	speech, err := s.ai.TextToSpeech(ctx, resp.Response)
	if err != nil {
		return err
	}
	if !s.appendTurn(gen, audio.RoleSystem, resp.Response, speech) {
		return ErrCleared
	}
	if s.isCompletion(resp.Response) {
		s.mu.Lock()
		if s.gen == gen {
			s.completed = true
		}
		s.mu.Unlock()
		s.log.Info().Msg("completion phrase detected")
	}

	return s.play(ctx, gen, speech)
}

// record reads the stream until the ceiling, an explicit stop, or the end of
// input, reporting the input level per chunk.
func (s *Session) record(ctx, recCtx context.Context, stream device.AudioStream) ([]int16, int, error) {
	defer stream.Stop()
	rate := stream.SampleRate()
	limit := int(int64(rate) * int64(s.cfg.MaxRecording) / int64(time.Second))
	var (
		samples []int16
		quiet   time.Duration
		warned  bool
	)
	for len(samples) < limit {
		chunk, err := stream.Read(recCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, rate, ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, device.ErrStopped) || recCtx.Err() != nil {
				break
			}
			return nil, rate, fmt.Errorf("read microphone: %w", err)
		}
		if room := limit - len(samples); len(chunk) > room {
			chunk = chunk[:room]
		}
		samples = append(samples, chunk...)

		level := audio.Level(chunk)
		if s.cb.OnLevel != nil {
			s.cb.OnLevel(level)
		}
		if level < s.cfg.QuietLevel {
			quiet += time.Duration(len(chunk)) * time.Second / time.Duration(rate)
		} else {
			quiet = 0
		}
		if !warned && quiet >= s.cfg.QuietWindow {
			warned = true
			s.log.Debug().Float64("level", level).Msg("input too quiet")
			if s.cb.OnQuietInput != nil {
				s.cb.OnQuietInput()
			}
		}
	}
	return samples, rate, nil
}

func (s *Session) play(ctx context.Context, gen uint64, speech []byte) error {
	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrCleared
	}
	s.state = StatePlaying
	s.stopPlay = cancel
	s.mu.Unlock()
	s.emitState(StatePlaying)

	err := s.player.Play(playCtx, speech)

	s.mu.Lock()
	if s.gen == gen {
		s.stopPlay = nil
	}
	s.mu.Unlock()
	if err != nil && playCtx.Err() == nil {
		// Playback failure does not lose the turn.
		s.log.Warn().Err(err).Msg("playback failed")
		s.fail(fmt.Errorf("audio playback: %w", err))
	}
	return nil
}

// archiveConversation merges every segment once and uploads the clip. An
// oversize clip is reported and skipped; an upload failure is only logged.
func (s *Session) archiveConversation(ctx context.Context, gen uint64) (*model.Media, error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil, ErrCleared
	}
	segments := s.segments
	s.segments = nil
	s.mu.Unlock()

	clip, err := audio.MergeAndEncode(segments, s.cfg.ArchiveRate)
	if err != nil {
		s.log.Warn().Err(err).Int("segments", len(segments)).Msg("merge conversation audio")
		s.fail(err)
		return nil, err
	}
	if err := clip.CheckSize(s.cfg.ArchiveMaxBytes); err != nil {
		s.log.Warn().Err(err).Msg("conversation audio not archived")
		s.fail(err)
		return nil, err
	}
	m, err := s.archive.Create(ctx, model.MediaUpload{
		Filename:  "conversation-" + s.now().Format("20060102-150405") + ".wav",
		MediaType: model.MediaTypeAudio,
		BlobType:  "audio/wav",
		Content:   clip.Data,
	})
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(clip.Data)).Msg("conversation audio upload failed")
		return nil, err
	}
	s.log.Info().Int("media_id", m.MediaID).Dur("duration", clip.Duration()).Msg("conversation archived")
	return m, nil
}

func (s *Session) isCompletion(reply string) bool {
	phrase := strings.TrimSpace(s.cfg.CompletionPhrase)
	return phrase != "" && strings.Contains(strings.ToLower(reply), strings.ToLower(phrase))
}

func (s *Session) appendTurn(gen uint64, role audio.Role, text string, data []byte) bool {
	at := s.now()
	msg := Message{Role: role, Text: text, At: at}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages, msg)
	s.segments = append(s.segments, audio.Segment{Role: role, At: at, Data: data})
	s.mu.Unlock()
	if s.cb.OnMessage != nil {
		s.cb.OnMessage(msg)
	}
	return true
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// setState moves a live turn to st. It reports false if the conversation
// was cleared since gen.
func (s *Session) setState(gen uint64, st State) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	changed := s.state != st
	s.state = st
	s.mu.Unlock()
	if changed {
		s.emitState(st)
	}
	return true
}

func (s *Session) emitState(st State) {
	if s.cb.OnState != nil {
		s.cb.OnState(st)
	}
}

func (s *Session) fail(err error) {
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}
