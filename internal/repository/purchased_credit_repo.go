package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/codemorph_server/internal/model"
)

const activeWindow = "start_date <= ? AND end_date > ?"

type PurchasedCreditRepository struct {
	db *gorm.DB
}

func NewPurchasedCreditRepository(db *gorm.DB) *PurchasedCreditRepository {
	return &PurchasedCreditRepository{db: db}
}

func (r *PurchasedCreditRepository) WithTx(tx *gorm.DB) *PurchasedCreditRepository {
	return &PurchasedCreditRepository{db: tx}
}

func (r *PurchasedCreditRepository) WithContext(ctx context.Context) *PurchasedCreditRepository {
	return &PurchasedCreditRepository{db: r.db.WithContext(ctx)}
}

func (r *PurchasedCreditRepository) Create(grant *model.PurchasedCredit) error {
	return r.db.Create(grant).Error
}

func (r *PurchasedCreditRepository) GetByID(id string) (*model.PurchasedCredit, error) {
	var grant model.PurchasedCredit
	if err := r.db.Where("id = ?", id).First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

// LockSoonestActive 锁定用户自己最早过期、余额足够的有效积分
func (r *PurchasedCreditRepository) LockSoonestActive(userID int64, cost int, now time.Time) (*model.PurchasedCredit, error) {
	var grant model.PurchasedCredit
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND remaining_credits >= ? AND "+activeWindow, userID, cost, now, now).
		Order("end_date ASC").Order("created_at ASC").
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// LockActiveByID 按 ID 锁定积分记录，并在锁内重新校验有效期和余额
func (r *PurchasedCreditRepository) LockActiveByID(id string, cost int, now time.Time) (*model.PurchasedCredit, error) {
	var grant model.PurchasedCredit
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND remaining_credits >= ? AND "+activeWindow, id, cost, now, now).
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// SharedCandidate 接收方可用的共享积分候选
type SharedCandidate struct {
	GrantID     string
	OwnerUserID int64
}

// FindSharedCandidates 查找接收方可用的分享者积分（不加锁），按过期时间升序
func (r *PurchasedCreditRepository) FindSharedCandidates(recipientID int64, cost int, now time.Time, exclude []string, limit int) ([]SharedCandidate, error) {
	var candidates []SharedCandidate

	query := r.db.Table("purchased_credits AS pc").
		Select("pc.id AS grant_id, pc.user_id AS owner_user_id").
		Joins("JOIN shared_credits sc ON sc.owner_user_id = pc.user_id").
		Where("sc.shared_user_id = ? AND sc.start_date <= ? AND sc.end_date > ?", recipientID, now, now).
		Where("pc.remaining_credits >= ? AND pc.start_date <= ? AND pc.end_date > ?", cost, now, now)
	if len(exclude) > 0 {
		query = query.Where("pc.id NOT IN ?", exclude)
	}

	err := query.Order("pc.end_date ASC").Order("pc.created_at ASC").
		Limit(limit).Scan(&candidates).Error
	return candidates, err
}

// Decrement 扣减余额，余额不足时不更新并返回 false
func (r *PurchasedCreditRepository) Decrement(id string, cost int) (bool, error) {
	result := r.db.Model(&model.PurchasedCredit{}).
		Where("id = ? AND remaining_credits >= ?", id, cost).
		Update("remaining_credits", gorm.Expr("remaining_credits - ?", cost))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// HasActiveWithRemaining 是否存在有效且有余额的购买积分
func (r *PurchasedCreditRepository) HasActiveWithRemaining(userID int64, now time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&model.PurchasedCredit{}).
		Where("user_id = ? AND remaining_credits > 0 AND "+activeWindow, userID, now, now).
		Count(&count).Error
	return count > 0, err
}

// SumActiveRemaining 有效积分余额合计
func (r *PurchasedCreditRepository) SumActiveRemaining(userID int64, now time.Time) (int, error) {
	var total int
	err := r.db.Model(&model.PurchasedCredit{}).
		Select("COALESCE(SUM(remaining_credits), 0)").
		Where("user_id = ? AND "+activeWindow, userID, now, now).
		Scan(&total).Error
	return total, err
}

// SumActiveRemainingByUsers 多个用户的有效积分余额合计，按用户分组
func (r *PurchasedCreditRepository) SumActiveRemainingByUsers(userIDs []int64, now time.Time) (map[int64]int, error) {
	result := make(map[int64]int, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		UserID int64
		Total  int
	}
	err := r.db.Model(&model.PurchasedCredit{}).
		Select("user_id, COALESCE(SUM(remaining_credits), 0) AS total").
		Where("user_id IN ? AND "+activeWindow, userIDs, now, now).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.UserID] = row.Total
	}
	return result, nil
}

// SoonestActive 最早过期的有效积分
func (r *PurchasedCreditRepository) SoonestActive(userID int64, now time.Time) (*model.PurchasedCredit, error) {
	var grant model.PurchasedCredit
	err := r.db.Where("user_id = ? AND "+activeWindow, userID, now, now).
		Order("end_date ASC").First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// ListByUser 用户的全部购买记录，最近的在前
func (r *PurchasedCreditRepository) ListByUser(userID int64) ([]*model.PurchasedCredit, error) {
	var grants []*model.PurchasedCredit
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&grants).Error
	return grants, err
}

// FindInBatches 分批遍历全部购买记录
func (r *PurchasedCreditRepository) FindInBatches(batchSize int, fn func([]*model.PurchasedCredit) error) error {
	var batch []*model.PurchasedCredit
	return r.db.FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}
