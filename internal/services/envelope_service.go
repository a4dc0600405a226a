package services

import (
	"context"
	"log/slog"

	"finanzas/internal/core"
	"finanzas/internal/events"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// EnvelopeService manages the lifecycle of envelopes. Balances are only
// changed by the TransferEngine.
type EnvelopeService struct {
	repo      *storage.Repository
	publisher events.Publisher
}

func NewEnvelopeService(repo *storage.Repository, publisher events.Publisher) *EnvelopeService {
	return &EnvelopeService{repo: repo, publisher: publisher}
}

func (s *EnvelopeService) ListEnvelopes(ctx context.Context, userID int64) ([]core.Envelope, error) {
	return s.repo.ListEnvelopes(ctx, userID)
}

func (s *EnvelopeService) GetEnvelope(ctx context.Context, userID, id int64) (core.Envelope, error) {
	return s.repo.GetEnvelope(ctx, userID, id)
}

// CreateEnvelope creates an empty envelope. An empty icon falls back to
// the default.
func (s *EnvelopeService) CreateEnvelope(ctx context.Context, userID int64, name, icon string) (core.Envelope, error) {
	e := core.Envelope{UserID: userID, Name: name, Icon: icon}
	if err := e.Normalize(); err != nil {
		return core.Envelope{}, err
	}
	created, err := s.repo.CreateEnvelope(ctx, e)
	if err != nil {
		return core.Envelope{}, err
	}

	slog.InfoContext(ctx, "Envelope created",
		log.FieldComponent, log.ComponentEnvelope,
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID, log.FieldEnvelopeID, created.ID, "name", created.Name)

	ev := events.New(events.EnvelopeCreated, userID)
	ev.EnvelopeID = created.ID
	publish(ctx, s.publisher, ev)
	return created, nil
}

// DeleteEnvelope removes an envelope that holds no money.
func (s *EnvelopeService) DeleteEnvelope(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteEnvelope(ctx, userID, id); err != nil {
		return err
	}

	ev := events.New(events.EnvelopeDeleted, userID)
	ev.EnvelopeID = id
	publish(ctx, s.publisher, ev)
	return nil
}
