//go:build integration
// +build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	appconfig "criptosee-api/internal/config"
	"criptosee-api/internal/store"
	"criptosee-api/internal/svc"
)

func newIntegrationStore(t *testing.T) *store.Store {
	t.Helper()
	cfg, err := appconfig.Load("../../etc/criptosee.yaml")
	require.NoError(t, err)
	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.Store == nil {
		t.Skip("Postgres not configured (DSN empty)")
	}
	return svcCtx.Store
}

func TestPostgresConnectivity(t *testing.T) {
	st := newIntegrationStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var one int
	err := st.Conn().QueryRowCtx(ctx, &one, "SELECT 1")
	require.NoError(t, err, "postgres connectivity check failed")
	require.Equal(t, 1, one)
}

func TestLeaseRoundTrip(t *testing.T) {
	st := newIntegrationStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	const tier = "integration-test"
	defer st.Conn().ExecCtx(context.Background(),
		`DELETE FROM generation_locks WHERE tier = $1`, tier)

	first := uuid.New()
	acquired, err := st.AcquireLease(ctx, tier, first, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// a live lease blocks other owners
	second := uuid.New()
	acquired, err = st.AcquireLease(ctx, tier, second, time.Minute)
	require.NoError(t, err)
	require.False(t, acquired)

	// renewal only works for the holder
	ok, err := st.RenewLease(ctx, tier, second, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = st.RenewLease(ctx, tier, first, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// released leases are immediately claimable
	require.NoError(t, st.ReleaseLease(ctx, tier, first))
	acquired, err = st.AcquireLease(ctx, tier, second, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, st.ReleaseLease(ctx, tier, second))
}

func TestExpiredLeaseIsStolen(t *testing.T) {
	st := newIntegrationStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	const tier = "integration-steal"
	defer st.Conn().ExecCtx(context.Background(),
		`DELETE FROM generation_locks WHERE tier = $1`, tier)

	stale := uuid.New()
	acquired, err := st.AcquireLease(ctx, tier, stale, time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(1500 * time.Millisecond)

	thief := uuid.New()
	acquired, err = st.AcquireLease(ctx, tier, thief, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired, "expired lease must be stealable")
	require.NoError(t, st.ReleaseLease(ctx, tier, thief))
}
