// Package engine runs the interview state machine. It owns the turn loop,
// advances stages, delegates to the profile extractor, question generator and
// memoir writer, and persists every committed turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/guard"
	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/memoir"
	"github.com/felixgeelhaar/memoir/internal/observe"
	"github.com/felixgeelhaar/memoir/internal/profile"
	"github.com/felixgeelhaar/memoir/internal/question"
	"github.com/felixgeelhaar/memoir/internal/store"
)

// Deps are the collaborators an Engine is built from. Only Store is
// required; the rest default to the deterministic built-ins.
type Deps struct {
	Store     store.SessionStore
	Extractor profile.Extractor
	Questions *question.Generator
	Writer    *memoir.Writer
	Guard     *guard.Guard
	Observer  *observe.Observer
	Bus       *EventBus
	Clock     func() time.Time
	NewID     func() string
}

// Turn is the committed result of one user utterance.
type Turn struct {
	Reply    string
	Question question.Question
	Stage    interview.Stage
	Changed  []interview.Field
	Dropped  []error
	// Document is set when the utterance asked for the memoir.
	Document *interview.Document
	// Warning carries a non-fatal persistence failure.
	Warning error
}

// Engine drives interview sessions.
type Engine struct {
	cfg       config.Config
	store     store.SessionStore
	extractor profile.Extractor
	questions *question.Generator
	writer    *memoir.Writer
	guard     *guard.Guard
	obs       *observe.Observer
	bus       *EventBus
	clock     func() time.Time
	newID     func() string
	locks     *sessionLocks
}

// New builds an Engine from cfg. The configuration is validated up front so a
// bad topic order or field name fails here rather than mid-interview.
func New(cfg config.Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine: a session store is required")
	}
	if res := config.Validate(cfg); !res.Valid {
		return nil, fmt.Errorf("engine: invalid configuration: %s", strings.Join(res.Errors, "; "))
	}

	e := &Engine{
		cfg:       cfg,
		store:     deps.Store,
		extractor: deps.Extractor,
		questions: deps.Questions,
		writer:    deps.Writer,
		guard:     deps.Guard,
		obs:       deps.Observer,
		bus:       deps.Bus,
		clock:     deps.Clock,
		newID:     deps.NewID,
		locks:     newSessionLocks(),
	}
	if e.clock == nil {
		e.clock = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.extractor == nil {
		e.extractor = &profile.RuleExtractor{Now: e.clock}
	}
	if e.questions == nil {
		e.questions = question.New(cfg, nil)
		e.questions.Now = e.clock
	}
	if e.writer == nil {
		e.writer = memoir.New(cfg, nil)
		e.writer.Now = e.clock
	}
	if e.guard == nil {
		e.guard = guard.New(guard.FromConfig(cfg.Guard))
	}
	if e.obs == nil {
		e.obs = observe.Discard()
	}
	return e, nil
}

// Bus returns the event bus, which may be nil.
func (e *Engine) Bus() *EventBus {
	return e.bus
}

// StartSession creates a session in the greeting stage whose first message is
// the opening greeting. A persistence failure is returned alongside the
// usable session.
func (e *Engine) StartSession(ctx context.Context) (*interview.Session, error) {
	id := e.newID()
	ctx, span := e.obs.StartSpan(ctx, "StartSession", id)
	defer span.End()

	cctx, cancel := e.collaboratorContext(ctx)
	defer cancel()

	sess := interview.NewSession(id, e.clock())
	q, err := e.questions.Greeting(cctx, sess.Profile)
	if err != nil {
		observe.Fail(span, err)
		e.collaboratorFailed(id, "greeting", err)
		return nil, err
	}
	sess.Append(interview.Message{
		Role:        interview.RoleAssistant,
		Text:        q.Text,
		Timestamp:   e.clock(),
		StageAtTime: interview.StageGreeting,
	})

	e.obs.Log().Info().Str("session", id).Msg("session started")
	e.bus.PublishWithData(EventSessionStarted, id, nil)
	return sess, e.persist(ctx, sess)
}

// SubmitTurn records one user utterance and the assistant's reply. Either the
// whole turn is committed to s or, on error, s is left exactly as it was.
// A persistence failure after commit returns the turn together with an error
// matching interview.ErrPersistenceFailure.
func (e *Engine) SubmitTurn(ctx context.Context, s *interview.Session, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, interview.ErrEmptyUtterance
	}

	release, err := e.locks.acquire(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.Closed() {
		return nil, fmt.Errorf("%w: %s", interview.ErrSessionClosed, s.ID)
	}
	if e.idle(s) {
		if err := e.end(ctx, s, "idle"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s (idle)", interview.ErrSessionClosed, s.ID)
	}
	if v := e.guard.CheckUtterance(text); v != nil {
		e.obs.Log().Warn().Str("session", s.ID).Str("rule", v.Rule).Msg("utterance rejected")
		return nil, fmt.Errorf("%w: %s", interview.ErrRejectedInput, v.Message)
	}

	ctx, span := e.obs.StartSpan(ctx, "SubmitTurn", s.ID)
	defer span.End()

	cctx, cancel := e.collaboratorContext(ctx)
	defer cancel()

	draft := s.Clone()
	turn, err := e.runTurn(cctx, draft, text)
	if err == nil {
		// A collaborator that ignored the deadline must not commit late.
		err = cctx.Err()
	}
	if err != nil {
		err = interview.Unavailable("submit turn", err)
		observe.Fail(span, err)
		e.collaboratorFailed(s.ID, "submit turn", err)
		return nil, err
	}

	from := s.Stage
	*s = *draft
	turn.Stage = s.Stage

	log := e.obs.Log().With().Str("session", s.ID).Logger()
	if from != s.Stage {
		log.Info().Str("from", string(from)).Str("stage", string(s.Stage)).Msg("stage changed")
		e.bus.PublishWithData(EventStageChanged, s.ID, map[string]interface{}{"from": from, "to": s.Stage})
	}
	if len(turn.Changed) > 0 {
		e.bus.PublishWithData(EventProfileUpdated, s.ID, map[string]interface{}{"fields": turn.Changed})
	}
	for _, d := range turn.Dropped {
		log.Warn().Err(d).Msg("dropped malformed profile field")
		e.bus.PublishWithData(EventFieldDropped, s.ID, map[string]interface{}{"error": d.Error()})
	}
	switch turn.Question.Kind {
	case question.KindFollowUp:
		e.bus.PublishWithData(EventFollowUp, s.ID, map[string]interface{}{"topic": turn.Question.Topic})
	case question.KindExhausted:
		e.bus.PublishWithData(EventTopicsExhausted, s.ID, nil)
	}
	if turn.Document != nil {
		e.bus.PublishWithData(EventMemoirWritten, s.ID, map[string]interface{}{"style": turn.Document.Style, "sections": len(turn.Document.Sections)})
	}
	log.Debug().Str("stage", string(s.Stage)).Str("topic", string(turn.Question.Topic)).Int("messages", len(s.Messages)).Msg("turn committed")
	e.bus.PublishWithData(EventTurnCommitted, s.ID, map[string]interface{}{"stage": s.Stage, "messages": len(s.Messages), "covered": len(s.TopicsCovered)})

	if err := e.persist(ctx, s); err != nil {
		observe.Fail(span, err)
		turn.Warning = err
		return turn, err
	}
	return turn, nil
}

// runTurn applies one utterance to draft. It never touches the caller's
// session.
func (e *Engine) runTurn(ctx context.Context, draft *interview.Session, text string) (*Turn, error) {
	if config.MatchesTrigger(text, e.cfg.Triggers.Memoir) {
		return e.memoirTurn(ctx, draft, text)
	}
	if draft.Stage == interview.StageMemoirReady && config.MatchesTrigger(text, e.cfg.Triggers.Continue) {
		e.appendUser(draft, text, "")
		if err := draft.Transition(interview.StageDeepInterview); err != nil {
			return nil, err
		}
		turn := &Turn{}
		if err := e.ask(ctx, draft, turn); err != nil {
			return nil, err
		}
		return turn, nil
	}

	if draft.Stage == interview.StageGreeting {
		// The greeting was delivered when the session started.
		if err := draft.Transition(interview.StageProfileCollection); err != nil {
			return nil, err
		}
	}

	turn := &Turn{}
	xctx := ctx
	if draft.Stage == interview.StageProfileCollection {
		draft.ProfileTurns++
		if f, ok := e.questions.PendingField(draft.Profile); ok {
			xctx = profile.WithExpected(ctx, f)
		}
	}
	up, err := e.extractor.Extract(xctx, draft.Profile, text)
	if err != nil {
		return nil, interview.Unavailable("extract profile", err)
	}
	draft.Profile = up.Profile
	turn.Changed, turn.Dropped = up.Changed, up.Dropped

	topic := interview.TopicID("")
	if draft.Stage == interview.StageDeepInterview {
		topic = draft.CurrentTopic
	}
	e.appendUser(draft, text, topic)

	switch draft.Stage {
	case interview.StageMemoirReady:
		turn.Reply = question.ReadyNudgeText()
		e.appendAssistant(draft, turn.Reply, "")
		return turn, nil
	case interview.StageDeepInterview:
		if v := e.guard.CheckTurns(draft.Exchanges() - 1); v != nil {
			turn.Reply = question.CapReachedText()
			e.appendAssistant(draft, turn.Reply, "")
			return turn, nil
		}
	}

	if err := e.ask(ctx, draft, turn); err != nil {
		return nil, err
	}
	return turn, nil
}

// ask generates the next question for draft, moves from profile collection
// to the deep interview when the profile is complete or the turn budget is
// spent, records topic bookkeeping and appends the assistant message.
func (e *Engine) ask(ctx context.Context, draft *interview.Session, turn *Turn) error {
	q, err := e.questions.Next(ctx, e.request(draft))
	if err != nil {
		return err
	}
	if draft.Stage == interview.StageProfileCollection &&
		(q.Kind == question.KindProfileComplete || draft.ProfileTurns >= e.cfg.MaxProfileTurns) {
		if err := draft.Transition(interview.StageDeepInterview); err != nil {
			return err
		}
		if q, err = e.questions.Next(ctx, e.request(draft)); err != nil {
			return err
		}
	}

	switch q.Kind {
	case question.KindDeep:
		draft.MarkCovered(q.Topic)
		draft.CurrentTopic = q.Topic
	case question.KindFollowUp:
		draft.MarkFollowedUp(q.Topic)
	}
	turn.Question = q
	turn.Reply = q.Text
	e.appendAssistant(draft, q.Text, q.Topic)
	return nil
}

func (e *Engine) request(s *interview.Session) question.Request {
	return question.Request{
		Stage:         s.Stage,
		Profile:       s.Profile,
		TopicsCovered: s.TopicsCovered,
		FollowedUp:    s.FollowedUp,
		CurrentTopic:  s.CurrentTopic,
		Recent:        s.Recent(e.cfg.RecentMessages),
	}
}

// memoirTurn handles a spoken memoir request: the memoir is written from the
// transcript so far and the session waits in the memoir-ready stage.
func (e *Engine) memoirTurn(ctx context.Context, draft *interview.Session, text string) (*Turn, error) {
	doc, err := e.writer.Write(ctx, draft.ID, draft.Messages, draft.Profile, interview.StyleFactual)
	if err != nil {
		return nil, err
	}
	e.appendUser(draft, text, "")
	if draft.Stage != interview.StageMemoirReady {
		if err := draft.Transition(interview.StageMemoirReady); err != nil {
			return nil, err
		}
	}
	turn := &Turn{Document: doc, Reply: memoirReadyText(doc)}
	e.appendAssistant(draft, turn.Reply, "")
	return turn, nil
}

// RequestMemoir writes the memoir for s in style. It may be called from any
// stage except closed and leaves the session in the memoir-ready stage.
func (e *Engine) RequestMemoir(ctx context.Context, s *interview.Session, style interview.Style) (*interview.Document, error) {
	return e.RequestMemoirWithProgress(ctx, s, style, nil)
}

// RequestMemoirWithProgress is RequestMemoir reporting each composed section.
func (e *Engine) RequestMemoirWithProgress(ctx context.Context, s *interview.Session, style interview.Style, progress memoir.ProgressFunc) (*interview.Document, error) {
	release, err := e.locks.acquire(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.Closed() {
		return nil, fmt.Errorf("%w: %s", interview.ErrSessionClosed, s.ID)
	}

	ctx, span := e.obs.StartSpan(ctx, "RequestMemoir", s.ID)
	defer span.End()

	cctx, cancel := e.collaboratorContext(ctx)
	defer cancel()

	doc, err := e.writer.WriteWithProgress(cctx, s.ID, s.Messages, s.Profile, style, progress)
	if err != nil {
		observe.Fail(span, err)
		if errors.Is(err, interview.ErrCollaboratorUnavailable) {
			e.collaboratorFailed(s.ID, "write memoir", err)
		}
		return nil, err
	}

	e.obs.Log().Info().Str("session", s.ID).Str("style", string(doc.Style)).Int("sections", len(doc.Sections)).Msg("memoir written")
	e.bus.PublishWithData(EventMemoirWritten, s.ID, map[string]interface{}{"style": doc.Style, "sections": len(doc.Sections)})

	if s.Stage == interview.StageMemoirReady {
		return doc, nil
	}
	from := s.Stage
	if err := s.Transition(interview.StageMemoirReady); err != nil {
		return nil, err
	}
	e.bus.PublishWithData(EventStageChanged, s.ID, map[string]interface{}{"from": from, "to": s.Stage})
	return doc, e.persist(ctx, s)
}

// ContinueInterview returns a memoir-ready session to the deep interview and
// asks the next question.
func (e *Engine) ContinueInterview(ctx context.Context, s *interview.Session) (*Turn, error) {
	release, err := e.locks.acquire(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.Closed() {
		return nil, fmt.Errorf("%w: %s", interview.ErrSessionClosed, s.ID)
	}
	if s.Stage != interview.StageMemoirReady {
		return nil, fmt.Errorf("%w: continue from %s", interview.ErrInvalidTransition, s.Stage)
	}

	ctx, span := e.obs.StartSpan(ctx, "ContinueInterview", s.ID)
	defer span.End()

	cctx, cancel := e.collaboratorContext(ctx)
	defer cancel()

	draft := s.Clone()
	if err := draft.Transition(interview.StageDeepInterview); err != nil {
		return nil, err
	}
	turn := &Turn{}
	if err := e.ask(cctx, draft, turn); err != nil {
		err = interview.Unavailable("continue interview", err)
		observe.Fail(span, err)
		e.collaboratorFailed(s.ID, "continue interview", err)
		return nil, err
	}

	*s = *draft
	turn.Stage = s.Stage
	e.bus.PublishWithData(EventStageChanged, s.ID, map[string]interface{}{"from": interview.StageMemoirReady, "to": s.Stage})
	if err := e.persist(ctx, s); err != nil {
		turn.Warning = err
		return turn, err
	}
	return turn, nil
}

// EndSession closes s with a single farewell message. Ending a closed session
// does nothing.
func (e *Engine) EndSession(ctx context.Context, s *interview.Session) error {
	release, err := e.locks.acquire(ctx, s.ID)
	if err != nil {
		return err
	}
	defer release()
	return e.end(ctx, s, "ended")
}

// CloseIdle ends s if no message has arrived within the configured idle
// timeout. It reports whether it closed the session.
func (e *Engine) CloseIdle(ctx context.Context, s *interview.Session) (bool, error) {
	release, err := e.locks.acquire(ctx, s.ID)
	if err != nil {
		return false, err
	}
	defer release()

	if !e.idle(s) {
		return false, nil
	}
	return true, e.end(ctx, s, "idle")
}

func (e *Engine) idle(s *interview.Session) bool {
	d := e.cfg.Idle()
	return d > 0 && !s.Closed() && e.clock().Sub(s.UpdatedAt) > d
}

// end closes s. The caller holds the session lock.
func (e *Engine) end(ctx context.Context, s *interview.Session, reason string) error {
	if s.Closed() {
		return nil
	}

	ctx, span := e.obs.StartSpan(ctx, "EndSession", s.ID)
	defer span.End()

	cctx, cancel := e.collaboratorContext(ctx)
	defer cancel()

	text, err := e.questions.Closing(cctx, s.Profile, s.Exchanges())
	if err != nil {
		e.obs.Log().Warn().Str("session", s.ID).Err(err).Msg("closing phrase failed, using default")
		text = question.ClosingText(s.Profile, s.Exchanges())
	}
	if err := s.Transition(interview.StageClosed); err != nil {
		return err
	}
	e.appendAssistant(s, text, "")

	e.obs.Log().Info().Str("session", s.ID).Str("reason", reason).Int("exchanges", s.Exchanges()).Msg("session closed")
	e.bus.PublishWithData(EventSessionClosed, s.ID, map[string]interface{}{"exchanges": s.Exchanges(), "reason": reason})
	return e.persist(ctx, s)
}

// Save forces a persistence write of s.
func (e *Engine) Save(ctx context.Context, s *interview.Session) error {
	release, err := e.locks.acquire(ctx, s.ID)
	if err != nil {
		return err
	}
	defer release()
	return e.persist(ctx, s)
}

// Load restores a saved session. A session idle past the configured timeout
// comes back closed.
func (e *Engine) Load(ctx context.Context, id string) (*interview.Session, error) {
	rec, err := e.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := rec.Session()
	if err != nil {
		return nil, err
	}
	if _, err := e.CloseIdle(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

func (e *Engine) persist(ctx context.Context, s *interview.Session) error {
	if err := e.store.SaveSession(ctx, store.FromSession(s)); err != nil {
		perr := &interview.PersistenceError{SessionID: s.ID, Err: err}
		e.obs.Log().Error().Str("session", s.ID).Err(err).Msg("failed to persist session")
		e.bus.PublishWithData(EventPersistenceFailed, s.ID, map[string]interface{}{"error": err.Error()})
		return perr
	}
	return nil
}

func (e *Engine) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := e.cfg.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) collaboratorFailed(id, op string, err error) {
	e.obs.Log().Error().Str("session", id).Str("op", op).Err(err).Msg("collaborator failed")
	e.bus.PublishWithData(EventCollaboratorFailed, id, map[string]interface{}{"op": op, "error": err.Error()})
}

func (e *Engine) appendUser(s *interview.Session, text string, topic interview.TopicID) {
	s.Append(interview.Message{
		Role:        interview.RoleUser,
		Text:        text,
		Timestamp:   e.clock(),
		StageAtTime: s.Stage,
		Topic:       topic,
	})
}

func (e *Engine) appendAssistant(s *interview.Session, text string, topic interview.TopicID) {
	s.Append(interview.Message{
		Role:        interview.RoleAssistant,
		Text:        text,
		Timestamp:   e.clock(),
		StageAtTime: s.Stage,
		Topic:       topic,
	})
}

func memoirReadyText(doc *interview.Document) string {
	return fmt.Sprintf(`Your memoir "%s" is ready with %d sections. Say "continue" to keep talking, or ask for /memoir literary or /memoir letter.`,
		doc.Title, len(doc.Sections))
}
