package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/events"
	"lsadf-backend/core/keylock"
	"lsadf-backend/core/scheduler"
	gsmodels "lsadf-backend/feature/gamesave/models"
	"lsadf-backend/feature/mail/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTTL = 30 * 24 * time.Hour

// SaveUpdater applies mail side effects to a game save.
type SaveUpdater interface {
	Touch(ctx context.Context, id uuid.UUID, cacheOnly bool) error
	Credit(ctx context.Context, id uuid.UUID, delta gsmodels.Currency, cacheOnly bool) (gsmodels.Currency, error)
}

// Draft is a mail to be sent.
type Draft struct {
	Subject  string        `json:"subject"`
	Body     string        `json:"body"`
	Gold     int64         `json:"gold"`
	Diamond  int64         `json:"diamond"`
	Emerald  int64         `json:"emerald"`
	Amethyst int64         `json:"amethyst"`
	TTL      time.Duration `json:"-"`
}

// Service reads and claims mails.
type Service struct {
	store  *Store
	bus    *events.Bus
	clock  clock.Clock
	cfg    Config
	logger *zap.Logger
}

// NewService creates a new mail service.
func NewService(store *Store, bus *events.Bus, clk clock.Clock, cfg Config, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, bus: bus, clock: clk, cfg: cfg, logger: logger}
}

// Send stores a new mail for a game save.
func (s *Service) Send(ctx context.Context, saveID uuid.UUID, d Draft) (models.Mail, error) {
	if strings.TrimSpace(d.Subject) == "" {
		return models.Mail{}, fmt.Errorf("%w: empty subject", apperror.ErrInvalidValue)
	}
	if d.Gold < 0 || d.Diamond < 0 || d.Emerald < 0 || d.Amethyst < 0 {
		return models.Mail{}, fmt.Errorf("%w: negative reward", apperror.ErrInvalidValue)
	}
	ttl := d.TTL
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := s.clock.Now().UTC()
	m := models.Mail{
		ID:         uuid.New(),
		GameSaveID: saveID,
		Subject:    d.Subject,
		Body:       d.Body,
		Gold:       d.Gold,
		Diamond:    d.Diamond,
		Emerald:    d.Emerald,
		Amethyst:   d.Amethyst,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := s.store.Create(ctx, m); err != nil {
		return models.Mail{}, fmt.Errorf("create mail: %w", err)
	}
	return m, nil
}

// List returns the mails of a game save.
func (s *Service) List(ctx context.Context, saveID uuid.UUID) ([]models.Mail, error) {
	return s.store.List(ctx, saveID)
}

// Read marks a mail as read. MailRead is published only on the first read.
func (s *Service) Read(ctx context.Context, id uuid.UUID) (models.Mail, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return m, err
	}
	changed, err := s.store.MarkRead(ctx, id)
	if err != nil {
		return m, fmt.Errorf("mark read: %w", err)
	}
	m.Read = true
	if !changed {
		return m, nil
	}
	return m, s.publish(ctx, events.MailRead, events.MailPayload{MailID: m.ID, GameSaveID: m.GameSaveID})
}

// Claim hands out the reward of a mail. A mail can be claimed once and never after it expired.
func (s *Service) Claim(ctx context.Context, id uuid.UUID) (models.Mail, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return m, err
	}
	if m.IsExpired(s.clock.Now()) {
		return m, fmt.Errorf("%w: mail %s expired", apperror.ErrConflict, id)
	}
	changed, err := s.store.MarkClaimed(ctx, id)
	if err != nil {
		return m, fmt.Errorf("mark claimed: %w", err)
	}
	if !changed {
		return m, fmt.Errorf("%w: mail %s already claimed", apperror.ErrConflict, id)
	}
	m.Read, m.Claimed = true, true

	return m, s.publish(ctx, events.MailClaimed, events.MailClaimedPayload{
		MailPayload: events.MailPayload{MailID: m.ID, GameSaveID: m.GameSaveID},
		Gold:        m.Gold,
		Diamond:     m.Diamond,
		Emerald:     m.Emerald,
		Amethyst:    m.Amethyst,
	})
}

// Cleanup deletes expired mails.
func (s *Service) Cleanup(ctx context.Context) error {
	n, err := s.store.DeleteExpired(ctx, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete expired mails: %w", err)
	}
	if n > 0 {
		s.logger.Info("Deleted expired mails", zap.Int64("count", n))
	}
	return nil
}

// Loop returns the supervised mail cleanup service.
func (s *Service) Loop() *scheduler.Loop {
	return scheduler.NewLoop("mail-cleanup", s.cfg.CleanupInterval, s.Cleanup, s.logger)
}

func (s *Service) publish(ctx context.Context, t events.Type, payload any) error {
	e, err := events.New(t, s.clock.Now(), payload)
	if err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		return fmt.Errorf("publish %s: %w", t, err)
	}
	return nil
}

// RegisterListeners binds the asynchronous mail side effects to the bus. Both listeners write
// cache-only so the next flush persists them.
func RegisterListeners(bus *events.Bus, saves SaveUpdater, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := keylock.New()

	err := bus.Register(events.MailRead, events.Async, func(ctx context.Context, e events.Event) error {
		var p events.MailPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		unlock := locks.Lock(p.GameSaveID.String())
		defer unlock()
		return saves.Touch(ctx, p.GameSaveID, true)
	})
	if err != nil {
		return err
	}

	return bus.Register(events.MailClaimed, events.Async, func(ctx context.Context, e events.Event) error {
		var p events.MailClaimedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		unlock := locks.Lock(p.GameSaveID.String())
		defer unlock()

		balance, err := saves.Credit(ctx, p.GameSaveID, gsmodels.Currency{
			Gold:     &p.Gold,
			Diamond:  &p.Diamond,
			Emerald:  &p.Emerald,
			Amethyst: &p.Amethyst,
		}, true)
		if err != nil {
			return fmt.Errorf("credit mail %s: %w", p.MailID, err)
		}
		logger.Debug("Mail reward credited",
			zap.String("mail_id", p.MailID.String()),
			zap.String("game_save_id", p.GameSaveID.String()),
			zap.Any("balance", balance),
		)
		return nil
	})
}
