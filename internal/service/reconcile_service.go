package service

import (
	"context"
	"time"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/repository"
)

const reconcileBatchSize = 500

// Discrepancy 一笔购买积分的账实不符
// Expected = Initial - Drawn，Delta = Remaining - Expected
type Discrepancy struct {
	GrantID   string    `json:"grant_id"`
	UserID    int64     `json:"user_id"`
	PlanType  string    `json:"plan_type"`
	Initial   int       `json:"initial"`
	Drawn     int       `json:"drawn"`
	Expected  int       `json:"expected"`
	Remaining int       `json:"remaining"`
	Delta     int       `json:"delta"`
	EndDate   time.Time `json:"end_date"`
}

// ReconcileReport 对账结果
type ReconcileReport struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	GrantsChecked int            `json:"grants_checked"`
	Discrepancies []*Discrepancy `json:"discrepancies"`
}

// OK 没有发现差异
func (r *ReconcileReport) OK() bool {
	return len(r.Discrepancies) == 0
}

// ReconcileService 核对购买积分余额与流水，只读，不做修复
type ReconcileService struct {
	grantRepo *repository.PurchasedCreditRepository
	txRepo    *repository.TransactionRepository
	now       func() time.Time
}

func NewReconcileService(grantRepo *repository.PurchasedCreditRepository, txRepo *repository.TransactionRepository) *ReconcileService {
	return &ReconcileService{
		grantRepo: grantRepo,
		txRepo:    txRepo,
		now:       utcNow,
	}
}

// Check 对每笔购买积分核对 initial - Σusage == remaining
func (s *ReconcileService) Check(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{
		GeneratedAt:   s.now(),
		Discrepancies: []*Discrepancy{},
	}
	txs := s.txRepo.WithContext(ctx)

	err := s.grantRepo.WithContext(ctx).FindInBatches(reconcileBatchSize, func(batch []*model.PurchasedCredit) error {
		ids := make([]string, 0, len(batch))
		for _, g := range batch {
			ids = append(ids, g.ID)
		}

		drawn, err := txs.SumUsageByGrants(ids)
		if err != nil {
			return err
		}

		for _, g := range batch {
			report.GrantsChecked++
			expected := g.InitialCredits - drawn[g.ID]
			if expected == g.RemainingCredits {
				continue
			}
			report.Discrepancies = append(report.Discrepancies, &Discrepancy{
				GrantID:   g.ID,
				UserID:    g.UserID,
				PlanType:  g.PlanType,
				Initial:   g.InitialCredits,
				Drawn:     drawn[g.ID],
				Expected:  expected,
				Remaining: g.RemainingCredits,
				Delta:     g.RemainingCredits - expected,
				EndDate:   g.EndDate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
