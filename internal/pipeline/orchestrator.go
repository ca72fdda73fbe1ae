// Package pipeline sequences script generation, voice mapping, synthesis
// and assembly for one request at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/script"
)

// TextGenerator writes a script for an AI request.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.AIGenerated) (domain.Script, error)
}

// VoiceResolver assigns a voice to every speaker of a script.
type VoiceResolver interface {
	Resolve(s domain.Script, overrides domain.VoiceMap) (domain.VoiceMap, error)
}

// Synthesizer voices a mapped script.
type Synthesizer interface {
	Synthesize(ctx context.Context, s domain.Script, vm domain.VoiceMap) ([]domain.AudioSegment, error)
}

// Assembler joins segments into an asset.
type Assembler interface {
	Assemble(segments []domain.AudioSegment) (domain.AudioAsset, error)
}

// Config wires the pipeline stages.
type Config struct {
	// Text may be nil, in which case only manual requests are accepted.
	Text      TextGenerator
	Voices    VoiceResolver
	Synth     Synthesizer
	Assembler Assembler

	Logger *log.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of a run.
type Result struct {
	RunID  string
	Asset  *domain.AudioAsset
	Script domain.Script

	// Partial is set only for runs that opted in with WithPartial and
	// failed during synthesis after producing some segments. It is
	// returned together with a non-nil error.
	Partial *domain.AudioAsset
}

// Error is a failed run. Kind classifies the cause; State is where the run
// was when it failed.
type Error struct {
	Kind  domain.Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.State, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind lets domain.KindOf report Kind for wrapped run errors.
func (e *Error) ErrorKind() domain.Kind { return e.Kind }

// Advice tells the user what to do about the failure.
func (e *Error) Advice() domain.Advice { return e.Kind.Advice() }

// RunOption customises a single run.
type RunOption func(*runOptions)

type runOptions struct {
	progress chan<- Transition
	partial  bool
	edit     func(domain.Script) (domain.Script, error)
}

// WithProgress sends every transition of the run to ch. Sends block until
// received or until the run's context is done.
func WithProgress(ch chan<- Transition) RunOption {
	return func(o *runOptions) { o.progress = ch }
}

// WithPartial asks for a partial asset when synthesis fails after
// producing some segments.
func WithPartial() RunOption {
	return func(o *runOptions) { o.partial = true }
}

// WithEdit runs fn on the script before voices are mapped. The returned
// script replaces the original and is validated again.
func WithEdit(fn func(domain.Script) (domain.Script, error)) RunOption {
	return func(o *runOptions) { o.edit = fn }
}

// Orchestrator runs one request at a time.
type Orchestrator struct {
	cfg Config
	log *log.Logger

	busy  atomic.Bool
	state atomic.Int32
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Voices == nil:
		return nil, errors.New("voice resolver is required")
	case cfg.Synth == nil:
		return nil, errors.New("synthesizer is required")
	case cfg.Assembler == nil:
		return nil, errors.New("assembler is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{cfg: cfg, log: logger.WithPrefix("pipeline")}, nil
}

// State reports the state of the in-flight run, or StateIdle.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Run turns req into an audio asset. A second Run while one is in flight
// fails at once with ErrBusy and emits no progress.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest, overrides domain.VoiceMap, opts ...RunOption) (*Result, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if !o.busy.CompareAndSwap(false, true) {
		return nil, &Error{Kind: domain.KindBusy, State: o.State(), Err: domain.ErrBusy}
	}
	defer o.busy.Store(false)
	defer o.state.Store(int32(StateIdle))

	r := &run{
		o:    o,
		ctx:  ctx,
		id:   uuid.NewString(),
		opts: ro,
		sm:   newStateMachine(),
	}
	r.log = o.log.With("run", shortID(r.id))
	r.sm.OnTransition(r.publish)

	return r.execute(req, overrides)
}

type run struct {
	o    *Orchestrator
	ctx  context.Context
	id   string
	opts runOptions
	sm   *stateMachine
	log  *log.Logger

	failure   error
	delivered bool
}

func (r *run) execute(req domain.GenerationRequest, overrides domain.VoiceMap) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, r.fail(err)
	}

	var (
		s   domain.Script
		err error
	)
	switch req.Kind() {
	case domain.RequestAIGenerated:
		if r.o.cfg.Text == nil {
			return nil, r.fail(&domain.ConfigurationError{Field: "text", Reason: "no text generator is configured"})
		}
		if err := r.enter(StateGenerating); err != nil {
			return nil, err
		}
		if s, err = r.o.cfg.Text.Generate(r.ctx, *req.AIGenerated); err != nil {
			return nil, r.fail(err)
		}
		if err := r.enter(StateMappingVoices); err != nil {
			return nil, err
		}
	default:
		if err := r.enter(StateMappingVoices); err != nil {
			return nil, err
		}
		if s, err = script.ParseManual(req.Manual.ScriptText); err != nil {
			return nil, r.fail(err)
		}
	}

	if r.opts.edit != nil {
		edited, err := r.opts.edit(s)
		if err != nil {
			return nil, r.fail(err)
		}
		if err := edited.Validate(); err != nil {
			return nil, r.fail(err)
		}
		s = edited
	}
	if err := r.checkCancelled(); err != nil {
		return nil, err
	}

	vm, err := r.o.cfg.Voices.Resolve(s, overrides)
	if err != nil {
		return nil, r.fail(err)
	}
	r.log.Debug("Resolved voices", "speakers", len(vm), "lines", s.Len())

	if err := r.enter(StateSynthesizing); err != nil {
		return nil, err
	}
	segments, err := r.o.cfg.Synth.Synthesize(r.ctx, s, vm)
	if err != nil {
		return r.synthesisFailed(s, err)
	}

	if err := r.enter(StateAssembling); err != nil {
		return nil, err
	}
	asset, err := r.o.cfg.Assembler.Assemble(segments)
	if err != nil {
		return nil, r.fail(err)
	}
	r.finish(&asset, s, false)

	if err := r.enter(StateComplete); err != nil {
		return nil, err
	}
	r.log.Info("Run complete", "duration", asset.Duration, "segments", len(segments))
	return &Result{RunID: r.id, Asset: &asset, Script: s}, nil
}

// synthesisFailed applies the partial policy. Without opt-in, or on
// cancellation, no asset leaves the run.
func (r *run) synthesisFailed(s domain.Script, err error) (*Result, error) {
	var partial *domain.PartialSynthesisError
	if !r.opts.partial || !errors.As(err, &partial) || len(partial.Segments) == 0 || r.ctx.Err() != nil {
		return nil, r.fail(err)
	}

	// Assembled without leaving Synthesizing, so the run still fails there.
	asset, asmErr := r.o.cfg.Assembler.Assemble(partial.Segments)
	if asmErr != nil {
		r.log.Warn("Could not assemble partial audio", "err", asmErr)
		return nil, r.fail(err)
	}
	r.finish(&asset, s, true)
	r.delivered = true

	failErr := r.fail(err)
	return &Result{RunID: r.id, Script: s, Partial: &asset}, failErr
}

func (r *run) finish(asset *domain.AudioAsset, s domain.Script, partial bool) {
	asset.ID = r.id
	asset.Script = s
	asset.CreatedAt = r.o.cfg.Now()
	asset.Partial = partial
}

// enter moves the run to state, failing it first if ctx is done.
func (r *run) enter(to State) error {
	if err := r.checkCancelled(); err != nil {
		return err
	}
	if !r.sm.Transition(to) {
		return r.fail(fmt.Errorf("invalid transition from %s to %s", r.sm.Current(), to))
	}
	return nil
}

func (r *run) checkCancelled() error {
	if err := r.ctx.Err(); err != nil {
		return r.fail(errors.Join(domain.ErrCancelled, err))
	}
	return nil
}

// fail moves the run to StateFailed and returns the run error. A partial
// synthesis error keeps its kind only if its audio left the run; otherwise
// the run is classified by what stopped synthesis.
func (r *run) fail(err error) error {
	state := r.sm.Current()
	kind := domain.KindOf(err)
	var partial *domain.PartialSynthesisError
	if kind == domain.KindPartialSynthesis && !r.delivered && errors.As(err, &partial) && partial.Err != nil {
		kind = domain.KindOf(partial.Err)
	}
	if r.ctx.Err() != nil && kind != domain.KindCancelled {
		err = errors.Join(domain.ErrCancelled, err)
		kind = domain.KindCancelled
	}

	runErr := &Error{Kind: kind, State: state, Err: err}
	r.failure = runErr
	r.sm.Transition(StateFailed)
	r.log.Warn("Run failed", "state", state, "kind", kind, "err", err)
	return runErr
}

func (r *run) publish(from, to State) {
	r.o.state.Store(int32(to))
	r.log.Debug("Transition", "from", from, "to", to)

	ch := r.opts.progress
	if ch == nil {
		return
	}
	t := Transition{RunID: r.id, From: from, To: to, At: r.o.cfg.Now()}
	if to == StateFailed {
		t.Err = r.failure
	}

	select {
	case ch <- t:
	case <-r.ctx.Done():
		// Still deliver to a waiting receiver.
		select {
		case ch <- t:
		default:
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
