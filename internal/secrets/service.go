package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

// Store is the persistence surface the service needs.
type Store interface {
	Get(ctx context.Context) (models.Secrets, bool, error)
	CreateOrReplace(ctx context.Context, s models.Secrets) error
}

// Service resolves and validates the ImageKit credentials.
type Service struct {
	store  Store
	env    models.Secrets // environment fallbacks, lowest precedence
	logger *zap.Logger
}

// NewService creates a secrets service. env carries credential fallbacks from
// the process environment, used only when the document leaves a field empty.
func NewService(store Store, env models.Secrets, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, env: env, logger: logger}
}

// Load reads the singleton secrets record. A missing record is not an error:
// the zero record (Valid() == false) is returned. Store failures are logged
// and likewise yield the zero record, matching the read-side contract that
// credential lookup never blocks the caller with an exception.
func (s *Service) Load(ctx context.Context) models.Secrets {
	record, found, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn("secrets read failed", zap.Error(err))
		return models.Secrets{}
	}
	if !found {
		return models.Secrets{}
	}
	return record
}

// Resolve returns the secrets with environment fallbacks applied per field.
// Used by the auth endpoint so a deployment can run on env credentials before
// the secrets document is configured.
func (s *Service) Resolve(ctx context.Context) models.Secrets {
	record := s.Load(ctx)
	if record.PublicKey == "" {
		record.PublicKey = s.env.PublicKey
	}
	if record.PrivateKey == "" {
		record.PrivateKey = s.env.PrivateKey
	}
	if record.URLEndpoint == "" {
		record.URLEndpoint = s.env.URLEndpoint
	}
	return record
}

// Save overwrites the record wholesale, then re-loads and re-validates. If all
// three keys were supplied but the reloaded record is not valid, the store
// silently dropped a field and ErrCredentialsInvalid is returned.
func (s *Service) Save(ctx context.Context, input models.Secrets) (models.Secrets, error) {
	if err := s.store.CreateOrReplace(ctx, input); err != nil {
		return models.Secrets{}, fmt.Errorf("persist secrets: %w", err)
	}

	persisted, found, err := s.store.Get(ctx)
	if err != nil {
		return models.Secrets{}, fmt.Errorf("reload secrets: %w", err)
	}
	if input.Valid() && (!found || !persisted.Valid()) {
		return models.Secrets{}, imagekit.ErrCredentialsInvalid
	}
	return persisted, nil
}
