package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"copilot/api/internal/auth"
	"copilot/api/internal/autosave"
	"copilot/api/internal/config"
	"copilot/api/internal/copilot"
	"copilot/api/internal/email"
	"copilot/api/internal/export"
	"copilot/api/internal/llm"
	"copilot/api/internal/rbac"
	"copilot/api/internal/util"
	"copilot/api/internal/workspace"

	"github.com/rs/zerolog"
)

type Session struct {
	Token       string
	WorkspaceID string
	Role        rbac.Role
	JTI         string
	ExpiresAt   time.Time
}

type exporter interface {
	Export(ctx context.Context, state copilot.State, format export.Format) (*export.Result, error)
}

type mailer interface {
	Send(msg email.Message) (email.Receipt, error)
}

type textWriter interface {
	Write(ctx context.Context, purpose, prompt string, fallback llm.Fallback) (string, bool)
}

// Deps are the collaborators a Service drives. Zero values fall back to
// in-memory or disabled implementations.
type Deps struct {
	Store     workspace.Store
	Writer    textWriter
	Exporter  exporter
	Mailer    mailer
	Logger    zerolog.Logger
	Now       func() time.Time
	AfterFunc autosave.AfterFunc
}

const defaultJWTSecret = "copilot-dev-secret"

var (
	summaryFallback = llm.Fallback{Empty: copilot.SummaryEmptyFallback, Failed: copilot.SummaryFailedFallback}
	emailFallback   = llm.Fallback{Empty: copilot.EmailEmptyFallback, Failed: copilot.EmailFailedFallback}
)

// Service owns every workspace. Transitions on one workspace are serialised;
// AI generation runs outside the lock and its result is applied to whatever
// the workspace holds when it arrives.
type Service struct {
	cfg      config.Config
	store    workspace.Store
	writer   textWriter
	exporter exporter
	mailer   mailer
	log      zerolog.Logger
	now      func() time.Time

	afterFunc autosave.AfterFunc

	mu     sync.Mutex
	locks  map[string]*workspaceLock
	savers map[string]*autosave.Debouncer
	closed bool
}

// workspaceLock is dropped from Service.locks once nobody holds or waits on it.
type workspaceLock struct {
	sync.Mutex
	refs int
}

// maxApplyAttempts bounds retries when another replica saved the same
// workspace between our load and update.
const maxApplyAttempts = 5

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		writer:    deps.Writer,
		exporter:  deps.Exporter,
		mailer:    deps.Mailer,
		log:       deps.Logger,
		now:       deps.Now,
		afterFunc: deps.AfterFunc,
		locks:     make(map[string]*workspaceLock),
		savers:    make(map[string]*autosave.Debouncer),
	}
	if s.store == nil {
		s.store = workspace.NewMemoryStore(cfg.WorkspaceTTL)
	}
	if s.writer == nil {
		s.writer = llm.NewWriter(llm.Disabled{}, cfg.LLMTimeout, deps.Logger)
	}
	if s.exporter == nil {
		s.exporter = export.NewService()
	}
	if s.mailer == nil {
		s.mailer = email.NewService(email.Config{}, deps.Logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close runs pending autosaves and stops the timers.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	savers := make([]*autosave.Debouncer, 0, len(s.savers))
	for _, d := range s.savers {
		savers = append(savers, d)
	}
	s.mu.Unlock()

	for _, d := range savers {
		d.Flush()
		d.Stop()
	}
}

// Sessions

func (s *Service) OpenSession(ctx context.Context, roleValue string) (Session, error) {
	role := rbac.RoleSalesRep
	if strings.TrimSpace(roleValue) != "" {
		parsed, ok := rbac.Parse(roleValue)
		if !ok {
			return Session{}, validationError("role must be sales_rep or manager")
		}
		role = parsed
	}

	state := copilot.NewState(util.NewID("ws"), s.now())
	if err := s.store.Save(ctx, state); err != nil {
		return Session{}, fmt.Errorf("save workspace: %w", err)
	}
	s.log.Info().Str("workspace_id", state.ID).Str("role", string(role)).Msg("workspace opened")
	return s.issueSession(state.ID, role)
}

// SwitchRole reissues the session token for the same workspace.
func (s *Service) SwitchRole(ctx context.Context, session Session, roleValue string) (Session, error) {
	role, ok := rbac.Parse(roleValue)
	if !ok {
		return Session{}, validationError("role must be sales_rep or manager")
	}
	if _, err := s.store.Load(ctx, session.WorkspaceID); err != nil {
		return Session{}, err
	}
	return s.issueSession(session.WorkspaceID, role)
}

func (s *Service) issueSession(workspaceID string, role rbac.Role) (Session, error) {
	jti := util.NewID("")
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expiresAt := time.Now().Add(ttl)
	token, err := auth.IssueToken(s.secret(), workspaceID, string(role), jti, ttl)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{
		Token:       token,
		WorkspaceID: workspaceID,
		Role:        role,
		JTI:         jti,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) secret() []byte {
	if s.cfg.JWTSecret == "" {
		return []byte(defaultJWTSecret)
	}
	return []byte(s.cfg.JWTSecret)
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken(s.secret(), token)
	if err != nil {
		return Session{}, err
	}
	session := Session{
		Token:       token,
		WorkspaceID: claims.WorkspaceID,
		Role:        rbac.Normalize(claims.Role),
		JTI:         claims.ID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Workspace reads

func (s *Service) Workspace(ctx context.Context, session Session) (WorkspaceView, error) {
	state, err := s.store.Load(ctx, session.WorkspaceID)
	if err != nil {
		return WorkspaceView{}, err
	}
	return newWorkspaceView(state, session.Role), nil
}

// Transitions

// lock serialises transitions on one workspace inside this process and
// returns the matching unlock.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &workspaceLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Service) env() copilot.Env {
	return copilot.Env{
		Now:                  s.now(),
		NewID:                util.ShortID,
		MaxRequestedDiscount: s.cfg.MaxRequestedDiscount,
	}
}

// apply runs one transition against the stored workspace and saves the result.
// A conflicting write from another replica reloads and replays the action.
func (s *Service) apply(ctx context.Context, id string, action copilot.Action) (copilot.State, error) {
	unlock := s.lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		before, err := s.store.Load(ctx, id)
		if err != nil {
			return copilot.State{}, err
		}
		after, err := copilot.Apply(before, action, s.env())
		if err != nil {
			return before, err
		}
		after.Revision = before.Revision + 1

		err = s.store.Update(ctx, after)
		if errors.Is(err, workspace.ErrConflict) && attempt < maxApplyAttempts {
			s.log.Debug().Str("workspace_id", id).Int("attempt", attempt).Msg("workspace conflict, retrying")
			continue
		}
		if err != nil {
			return before, fmt.Errorf("save workspace: %w", err)
		}
		if !before.Proposal.Equal(after.Proposal) {
			s.touch(id)
		}
		return after, nil
	}
}

func (s *Service) applyView(ctx context.Context, session Session, action copilot.Action) (WorkspaceView, error) {
	state, err := s.apply(ctx, session.WorkspaceID, action)
	if err != nil {
		return WorkspaceView{}, err
	}
	return newWorkspaceView(state, session.Role), nil
}

func (s *Service) touch(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	d, ok := s.savers[id]
	if !ok {
		fire := func() { s.autoSave(id) }
		if s.afterFunc != nil {
			d = autosave.NewWithTimer(s.cfg.AutoSaveQuiet, fire, s.afterFunc)
		} else {
			d = autosave.New(s.cfg.AutoSaveQuiet, fire)
		}
		s.savers[id] = d
	}
	d.Touch()
	s.mu.Unlock()
}

func (s *Service) autoSave(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := s.apply(ctx, id, copilot.AutoSave{})
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			s.forget(id)
			return
		}
		s.log.Error().Err(err).Str("workspace_id", id).Msg("autosave failed")
		return
	}
	s.log.Debug().Str("workspace_id", id).Int("versions", len(state.Versions)).Msg("autosave ran")
	s.release(id)
}

// release drops the debouncer of a workspace whose save already ran. The
// next edit creates a fresh one.
func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.savers[id]; ok && !d.Pending() {
		delete(s.savers, id)
	}
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	d := s.savers[id]
	delete(s.savers, id)
	s.mu.Unlock()
	if d != nil {
		d.Stop()
	}
}

func (s *Service) IngestLead(ctx context.Context, session Session) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.IngestLead{Lead: copilot.SampleLead})
}

// GenerateDraft asks for an executive summary and resets the proposal around
// it. The request outlives a disconnecting client.
func (s *Service) GenerateDraft(ctx context.Context, session Session) (WorkspaceView, error) {
	state, err := s.apply(ctx, session.WorkspaceID, copilot.BeginDraft{})
	if err != nil {
		return WorkspaceView{}, err
	}

	ctx = context.WithoutCancel(ctx)
	summary, _ := s.writer.Write(ctx, "summary", copilot.SummaryPrompt(*state.Lead), summaryFallback)
	return s.applyView(ctx, session, copilot.CompleteDraft{Summary: summary})
}

func (s *Service) EditField(ctx context.Context, session Session, field, value string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.EditField{Field: field, Value: value})
}

func (s *Service) AdjustQuantity(ctx context.Context, session Session, itemID string, delta int) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.AdjustQuantity{ItemID: itemID, Delta: delta})
}

func (s *Service) SubmitApproval(ctx context.Context, session Session, note string, requestedDiscount *int) (WorkspaceView, error) {
	view, err := s.applyView(ctx, session, copilot.SubmitApproval{
		Role:              session.Role,
		Note:              note,
		RequestedDiscount: requestedDiscount,
	})
	if errors.Is(err, copilot.ErrDiscountOutOfRange) {
		limit := s.cfg.MaxRequestedDiscount
		if limit <= 0 {
			limit = copilot.DefaultMaxRequestedDiscount
		}
		return view, domainError(http.StatusUnprocessableEntity, "DISCOUNT_OUT_OF_RANGE", "Requested discount out of range", map[string]any{"min": 0, "max": limit})
	}
	return view, err
}

func (s *Service) DecideApproval(ctx context.Context, session Session, approve bool, note string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.DecideApproval{Role: session.Role, Approve: approve, Note: note})
}

func (s *Service) RestoreVersion(ctx context.Context, session Session, versionID string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.RestoreVersion{VersionID: versionID})
}

func (s *Service) SaveTemplate(ctx context.Context, session Session, name string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.SaveTemplate{Name: name})
}

func (s *Service) ApplyTemplate(ctx context.Context, session Session, templateID string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.ApplyTemplate{TemplateID: templateID})
}

func (s *Service) PostMessage(ctx context.Context, session Session, text string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.PostMessage{Text: text})
}

// ComposeEmail opens the composer and fills it with a drafted follow-up.
func (s *Service) ComposeEmail(ctx context.Context, session Session) (WorkspaceView, error) {
	if !rbac.Can(session.Role, rbac.ActionFinalize) {
		return WorkspaceView{}, copilot.ErrForbidden
	}
	state, err := s.apply(ctx, session.WorkspaceID, copilot.OpenEmail{})
	if err != nil {
		return WorkspaceView{}, err
	}

	ctx = context.WithoutCancel(ctx)
	prompt := copilot.EmailPrompt(*state.Lead, state.Proposal.ExecutiveSummary)
	body, _ := s.writer.Write(ctx, "email", prompt, emailFallback)
	return s.applyView(ctx, session, copilot.CompleteEmail{Body: body})
}

func (s *Service) EditEmail(ctx context.Context, session Session, subject, body *string) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.EditEmail{Subject: subject, Body: body})
}

func (s *Service) DiscardEmail(ctx context.Context, session Session) (WorkspaceView, error) {
	return s.applyView(ctx, session, copilot.CloseEmail{Sent: false})
}

// SendEmail delivers the composer draft with the exported PDF attached,
// then closes the composer. An export failure sends the mail without the file.
func (s *Service) SendEmail(ctx context.Context, session Session) (WorkspaceView, email.Receipt, error) {
	state, err := s.store.Load(ctx, session.WorkspaceID)
	if err != nil {
		return WorkspaceView{}, email.Receipt{}, err
	}
	if state.Email == nil {
		return WorkspaceView{}, email.Receipt{}, copilot.ErrComposerClosed
	}
	draft := *state.Email

	msg := email.Message{
		ToName:  draft.ToName,
		To:      draft.To,
		Subject: draft.Subject,
		Body:    draft.Body,
	}
	if state.CanFinalize() {
		res, err := s.exporter.Export(ctx, state, export.FormatPDF)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("workspace_id", state.ID).Msg("attachment export failed, sending without file")
		case res.Reference != "":
			msg.Attachment = &email.Attachment{Name: draft.Attachment, ContentType: res.MimeType, Reference: res.Reference}
		default:
			msg.Attachment = &email.Attachment{Name: draft.Attachment, ContentType: res.MimeType, Data: res.Data}
		}
	}

	receipt, err := s.mailer.Send(msg)
	if err != nil {
		return WorkspaceView{}, email.Receipt{}, err
	}
	view, err := s.applyView(ctx, session, copilot.CloseEmail{Sent: true})
	if errors.Is(err, copilot.ErrComposerClosed) {
		// discarded while the mail was in flight
		view, err = s.Workspace(ctx, session)
	}
	return view, receipt, err
}

// Export renders the approved proposal.
func (s *Service) Export(ctx context.Context, session Session, format export.Format) (*export.Result, error) {
	if !rbac.Can(session.Role, rbac.ActionFinalize) {
		return nil, copilot.ErrForbidden
	}
	state, err := s.store.Load(ctx, session.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if state.Lead == nil {
		return nil, copilot.ErrNoLead
	}
	if !state.CanFinalize() {
		return nil, copilot.ErrNotFinalized
	}

	result, err := s.exporter.Export(ctx, state, format)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("workspace_id", state.ID).
		Str("format", string(format)).
		Str("filename", result.Filename).
		Int("bytes", len(result.Data)).
		Msg("proposal exported")
	return result, nil
}
