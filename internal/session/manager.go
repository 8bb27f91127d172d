// Package session implements the session store operations: it applies the
// assignment rules and lifecycle transitions to persisted sessions, checks
// who may do what and stamps every change with a new last_updated value.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/calculator"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/metrics"
	"github.com/mmynk/splitlive/internal/models"
	"github.com/mmynk/splitlive/internal/storage"
)

// DefaultTTL is how long a session lives when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// FinalizeHook runs after a finalize has been committed.
type FinalizeHook func(ctx context.Context, s *models.Session)

// Manager is the session store seen by the RPC layer.
type Manager struct {
	store      storage.Store
	tokens     *auth.TokenManager
	ttl        time.Duration
	now        func() time.Time
	onFinalize FinalizeHook
	logger     *slog.Logger
}

type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithFinalizeHook registers a callback for committed finalizes.
func WithFinalizeHook(h FinalizeHook) Option {
	return func(m *Manager) {
		m.onFinalize = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager.
func NewManager(store storage.Store, tokens *auth.TokenManager, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		tokens: tokens,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CreateParams seeds a new session.
type CreateParams struct {
	Title     string
	HostName  string
	HostPhone string
	Passcode  string

	// Currency defaults to models.DefaultCurrency.
	Currency *models.CurrencyFormat

	// Subtotal is the receipt subtotal, kept for the finalize check.
	Subtotal float64
	Items    []models.Item
	Charges  []models.Charge

	AllowEditorItems bool
}

// Created is the result of Create. OwnerToken is only ever returned here.
type Created struct {
	Session    *models.Session
	Host       models.Participant
	OwnerToken string
}

// Create starts a session with the host as its owner participant.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Created, error) {
	v := common.NewValidator().
		Required("host_name", p.HostName).
		MaxLength("host_name", p.HostName, maxNameLength).
		MaxLength("title", p.Title, maxTitleLength).
		Phone("host_phone", p.HostPhone).
		NonNegative("subtotal", p.Subtotal)
	if err := v.Err(); err != nil {
		return nil, err
	}

	currency := models.DefaultCurrency
	if p.Currency != nil {
		if err := validateCurrency(*p.Currency); err != nil {
			return nil, err
		}
		currency = *p.Currency
	}

	items, err := normalizeItems(p.Items)
	if err != nil {
		return nil, err
	}
	charges, err := normalizeCharges(p.Charges)
	if err != nil {
		return nil, err
	}

	var hash string
	if p.Passcode != "" {
		if hash, err = auth.HashPasscode(p.Passcode); err != nil {
			return nil, common.Invalidf("%v", err)
		}
	}

	phone, _ := common.NormalizePhone(p.HostPhone)
	host := models.Participant{
		ID:    uuid.New().String(),
		Name:  p.HostName,
		Role:  models.RoleOwner,
		Phone: phone,
	}

	now := m.now()
	s := &models.Session{
		ID:               uuid.New().String(),
		Title:            p.Title,
		Status:           models.StatusAssigning,
		Currency:         currency,
		Subtotal:         p.Subtotal,
		AllowEditorItems: p.AllowEditorItems,
		PasscodeHash:     hash,
		CreatedAt:        now.Unix(),
		ExpiresAt:        now.Add(m.ttl).Unix(),
		LastUpdated:      now.UnixMilli(),
		Participants:     []models.Participant{host},
		Items:            items,
		Assignments:      models.Assignments{},
		Charges:          charges,
		SavedModes:       models.SavedModes{},
	}

	if err := m.store.CreateSession(ctx, s); err != nil {
		m.logger.Error("failed to create session", "error", err)
		return nil, err
	}

	token, err := m.tokens.Generate(s.ID, host.ID, time.Unix(s.ExpiresAt, 0))
	if err != nil {
		return nil, err
	}

	metrics.SessionsCreated.Inc()
	m.logger.Info("session created", "session_id", s.ID, "items", len(items), "expires_at", s.ExpiresAt)
	return &Created{Session: s, Host: host, OwnerToken: token}, nil
}

// Get returns a live session, or NotFoundOrExpired.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now().Unix()) {
		return nil, common.NotFoundf("session %s expired", sessionID)
	}
	return s, nil
}

// PollResult is the answer to Poll. Session is nil when nothing changed.
type PollResult struct {
	HasChanges  bool
	LastUpdated int64
	Session     *models.Session
}

// Poll returns the full session if it changed after since (Unix millis).
func (m *Manager) Poll(ctx context.Context, sessionID string, since int64) (*PollResult, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.LastUpdated <= since {
		return &PollResult{LastUpdated: s.LastUpdated}, nil
	}
	return &PollResult{HasChanges: true, LastUpdated: s.LastUpdated, Session: s}, nil
}

// Totals returns the frozen snapshot of a finalized session, or live totals
// rounded the same way.
func Totals(s *models.Session) []models.ParticipantTotal {
	if s.Status == models.StatusFinalized && s.Totals != nil {
		return s.Totals
	}
	return calculator.Freeze(calculator.ComputeSession(s), s.Currency)
}

// Summary renders the session's totals as chat text.
func (m *Manager) Summary(ctx context.Context, sessionID string) (string, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return calculator.Summary(s, Totals(s)), nil
}

// update runs fn against a live session inside one store transaction and
// stamps the result. fn must not leave partial changes when it fails; the
// transaction is discarded anyway.
func (m *Manager) update(ctx context.Context, sessionID string, fn func(s *models.Session) error) (*models.Session, error) {
	return m.store.UpdateSession(ctx, sessionID, func(s *models.Session) error {
		if s.Expired(m.now().Unix()) {
			return common.NotFoundf("session %s expired", sessionID)
		}
		if s.Assignments == nil {
			s.Assignments = models.Assignments{}
		}
		if s.SavedModes == nil {
			s.SavedModes = models.SavedModes{}
		}
		if err := fn(s); err != nil {
			return err
		}
		m.touch(s)
		return nil
	})
}

// touch moves LastUpdated forward, strictly.
func (m *Manager) touch(s *models.Session) {
	now := m.now().UnixMilli()
	if now <= s.LastUpdated {
		now = s.LastUpdated + 1
	}
	s.LastUpdated = now
}

func requireAssigning(s *models.Session) error {
	if s.Status != models.StatusAssigning {
		return common.Statef("session is %s", s.Status)
	}
	return nil
}
