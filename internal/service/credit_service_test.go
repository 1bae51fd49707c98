package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCreditServiceReserveUntilExhausted(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewCreditService(repo, 2, zerolog.Nop())

	for i := 0; i < 2; i++ {
		allowed, err := svc.CheckAndReserve(context.Background(), 7)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 2, repo.used(7))
}

func TestCreditServiceReleaseRefunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewCreditService(repo, 1, zerolog.Nop())

	allowed, err := svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, svc.Release(context.Background(), 7))

	allowed, err = svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestCreditServicePeriodRollover(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewCreditService(repo, 1, zerolog.Nop()).(*creditService)

	current := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	allowed, err := svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, allowed)

	// A new month grants a fresh allowance.
	current = time.Date(2026, time.February, 1, 0, 5, 0, 0, time.UTC)
	allowed, err = svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestCreditServiceUsage(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewCreditService(repo, 5, zerolog.Nop())

	_, err := svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)

	usage, err := svc.Usage(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, usage.Used)
	require.Equal(t, 5, usage.MonthlyLimit)
	require.Equal(t, 4, usage.Remaining)
	require.NotEmpty(t, usage.Period)
}

func TestCreditServiceIsolatesTeachers(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewCreditService(repo, 1, zerolog.Nop())

	allowed, err := svc.CheckAndReserve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.CheckAndReserve(context.Background(), 8)
	require.NoError(t, err)
	require.True(t, allowed)
}
