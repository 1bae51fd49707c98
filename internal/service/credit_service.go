package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/repository"
)

// ErrQuotaExhausted indicates the teacher has no generation credits left
// this period.
var ErrQuotaExhausted = errors.New("monthly generation quota exhausted")

// CreditService guards the per-teacher AI-generation quota. The
// check-reserve-commit sequence is serialized per teacher: a mutex keeps one
// caller in the sequence at a time, and the repository's conditional update
// is the hard backstop should another node race us.
type CreditService interface {
	CheckAndReserve(ctx context.Context, teacherID uint) (bool, error)
	Commit(ctx context.Context, teacherID uint)
	Release(ctx context.Context, teacherID uint) error
	Usage(ctx context.Context, teacherID uint) (dto.UsageResponse, error)
}

type creditService struct {
	repo         repository.LedgerRepository
	monthlyLimit int
	logger       zerolog.Logger
	now          func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewCreditService constructs the credit service.
func NewCreditService(repo repository.LedgerRepository, monthlyLimit int, logger zerolog.Logger) CreditService {
	return &creditService{
		repo:         repo,
		monthlyLimit: monthlyLimit,
		logger:       logger.With().Str("component", "credit_service").Logger(),
		now:          time.Now,
		locks:        make(map[uint]*sync.Mutex),
	}
}

func (s *creditService) teacherLock(teacherID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[teacherID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[teacherID] = lock
	}
	return lock
}

func (s *creditService) period() string {
	return s.now().UTC().Format("2006-01")
}

// CheckAndReserve charges one credit if any remain. The reservation is the
// provisional charge; Release refunds it when generation fails.
func (s *creditService) CheckAndReserve(ctx context.Context, teacherID uint) (bool, error) {
	lock := s.teacherLock(teacherID)
	lock.Lock()
	defer lock.Unlock()

	period := s.period()
	if _, err := s.repo.Ensure(ctx, teacherID, s.monthlyLimit, period); err != nil {
		return false, err
	}

	allowed, err := s.repo.Reserve(ctx, teacherID, period)
	if err != nil {
		return false, err
	}
	if !allowed {
		s.logger.Info().Uint("teacher_id", teacherID).Str("period", period).Msg("generation blocked by quota")
	}
	return allowed, nil
}

// Commit finalizes a reservation after a successful generation. The charge
// already landed in Reserve; this is the bookkeeping point.
func (s *creditService) Commit(ctx context.Context, teacherID uint) {
	s.logger.Debug().Uint("teacher_id", teacherID).Msg("generation credit committed")
}

// Release refunds a reservation after a failed generation.
func (s *creditService) Release(ctx context.Context, teacherID uint) error {
	lock := s.teacherLock(teacherID)
	lock.Lock()
	defer lock.Unlock()
	return s.repo.Release(ctx, teacherID)
}

func (s *creditService) Usage(ctx context.Context, teacherID uint) (dto.UsageResponse, error) {
	ledger, err := s.repo.Ensure(ctx, teacherID, s.monthlyLimit, s.period())
	if err != nil {
		return dto.UsageResponse{}, err
	}
	return dto.UsageResponse{
		Used:         ledger.Used,
		MonthlyLimit: ledger.MonthlyLimit,
		Remaining:    ledger.Remaining(),
		Period:       ledger.Period,
	}, nil
}
