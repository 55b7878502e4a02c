package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

type fakeStore struct {
	record models.Secrets
	found  bool
	getErr error
	putErr error

	// dropPrivateKey simulates a store that silently loses a field.
	dropPrivateKey bool
}

func (f *fakeStore) Get(_ context.Context) (models.Secrets, bool, error) {
	return f.record, f.found, f.getErr
}

func (f *fakeStore) CreateOrReplace(_ context.Context, s models.Secrets) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.dropPrivateKey {
		s.PrivateKey = ""
	}
	f.record = s
	f.found = true
	return nil
}

func TestSecretsValid(t *testing.T) {
	tests := []struct {
		name string
		s    models.Secrets
		want bool
	}{
		{"all present", models.Secrets{PublicKey: "pk", PrivateKey: "sk", URLEndpoint: "https://x"}, true},
		{"missing public", models.Secrets{PrivateKey: "sk", URLEndpoint: "https://x"}, false},
		{"missing private", models.Secrets{PublicKey: "pk", URLEndpoint: "https://x"}, false},
		{"missing endpoint", models.Secrets{PublicKey: "pk", PrivateKey: "sk"}, false},
		{"zero", models.Secrets{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.s.Valid())
		})
	}
}

func TestLoad_MissingRecordIsNotAnError(t *testing.T) {
	svc := NewService(&fakeStore{}, models.Secrets{}, nil)
	got := svc.Load(context.Background())
	require.False(t, got.Valid())
}

func TestLoad_StoreFailureYieldsZeroRecord(t *testing.T) {
	svc := NewService(&fakeStore{getErr: errors.New("db down")}, models.Secrets{}, nil)
	got := svc.Load(context.Background())
	require.Equal(t, models.Secrets{}, got)
}

func TestResolve_EnvFallbacksPerField(t *testing.T) {
	store := &fakeStore{
		record: models.Secrets{PublicKey: "stored-pk"},
		found:  true,
	}
	env := models.Secrets{PublicKey: "env-pk", PrivateKey: "env-sk", URLEndpoint: "https://env"}
	svc := NewService(store, env, nil)

	got := svc.Resolve(context.Background())
	require.Equal(t, "stored-pk", got.PublicKey)
	require.Equal(t, "env-sk", got.PrivateKey)
	require.Equal(t, "https://env", got.URLEndpoint)
}

func TestSave_PersistsWholesale(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, models.Secrets{}, nil)

	input := models.Secrets{PublicKey: "pk", PrivateKey: "sk", URLEndpoint: "https://x"}
	saved, err := svc.Save(context.Background(), input)
	require.NoError(t, err)
	require.True(t, saved.Valid())
	require.Equal(t, input.PublicKey, store.record.PublicKey)
}

func TestSave_SilentDropDetected(t *testing.T) {
	store := &fakeStore{dropPrivateKey: true}
	svc := NewService(store, models.Secrets{}, nil)

	input := models.Secrets{PublicKey: "pk", PrivateKey: "sk", URLEndpoint: "https://x"}
	_, err := svc.Save(context.Background(), input)
	require.ErrorIs(t, err, imagekit.ErrCredentialsInvalid)
}

func TestSave_InvalidInputAllowed(t *testing.T) {
	// Clearing credentials is a legitimate save; no validation error.
	store := &fakeStore{}
	svc := NewService(store, models.Secrets{}, nil)

	saved, err := svc.Save(context.Background(), models.Secrets{PublicKey: "pk"})
	require.NoError(t, err)
	require.False(t, saved.Valid())
}

func TestSecretsView_NeverEchoesPrivateKey(t *testing.T) {
	s := models.Secrets{PublicKey: "pk", PrivateKey: "sk", URLEndpoint: "https://x"}
	view := s.View()
	require.True(t, view.PrivateKeySet)
	require.Equal(t, "pk", view.PublicKey)
}
