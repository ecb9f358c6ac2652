package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/internal/model"
)

// TransactionFilter 流水查询条件
type TransactionFilter struct {
	Kind   string
	Search string
	// Day 非空时匹配该自然日（UTC）的流水
	Day *time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

func (r *TransactionRepository) WithContext(ctx context.Context) *TransactionRepository {
	return &TransactionRepository{db: r.db.WithContext(ctx)}
}

func (r *TransactionRepository) Create(tx *model.CreditTransaction) error {
	return r.db.Create(tx).Error
}

// GetByIdempotencyKey 按幂等键查找
func (r *TransactionRepository) GetByIdempotencyKey(key string) (*model.CreditTransaction, error) {
	var tx model.CreditTransaction
	if err := r.db.Where("idempotency_key = ?", key).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListByUser 分页查询用户流水，按时间倒序
func (r *TransactionRepository) ListByUser(userID int64, filter TransactionFilter, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	var txs []*model.CreditTransaction
	var total int64

	query := r.db.Model(&model.CreditTransaction{}).Where("user_id = ?", userID)

	if filter.Kind != "" {
		query = query.Where("type = ?", filter.Kind)
	}

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		cond := r.db.Where("LOWER(type) LIKE ?", like).
			Or("LOWER(credit_source) LIKE ?", like).
			Or("CAST(amount AS CHAR) LIKE ?", like)
		if filter.Day != nil {
			dayStart := filter.Day.UTC()
			cond = cond.Or("created_at >= ? AND created_at < ?", dayStart, dayStart.Add(24*time.Hour))
		}
		query = query.Where(cond)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(pageSize).Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

// Recent 最近的 limit 条流水
func (r *TransactionRepository) Recent(userID int64, limit int) ([]*model.CreditTransaction, error) {
	var txs []*model.CreditTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&txs).Error
	return txs, err
}

// SumUsageBetween [from, to) 内消耗的积分（正数）
func (r *TransactionRepository) SumUsageBetween(userID int64, from, to time.Time) (int, error) {
	var total int
	err := r.db.Model(&model.CreditTransaction{}).
		Select("COALESCE(-SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND created_at >= ? AND created_at < ?", userID, model.TxKindUsage, from, to).
		Scan(&total).Error
	return total, err
}

// SumSharedDrawn 接收方自 since 起从某分享者处消耗的积分（正数）
func (r *TransactionRepository) SumSharedDrawn(recipientID, ownerID int64, since time.Time) (int, error) {
	var total int
	err := r.db.Model(&model.CreditTransaction{}).
		Select("COALESCE(-SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND credit_source = ? AND owner_user_id = ? AND created_at >= ?",
			recipientID, model.TxKindUsage, model.SourceShared, ownerID, since).
		Scan(&total).Error
	return total, err
}

// SumUsageByGrants 每条购买积分记录被消耗的积分（正数），按记录 ID 分组
func (r *TransactionRepository) SumUsageByGrants(grantIDs []string) (map[string]int, error) {
	result := make(map[string]int, len(grantIDs))
	if len(grantIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		GrantID string
		Drawn   int
	}
	err := r.db.Model(&model.CreditTransaction{}).
		Select("grant_id, COALESCE(-SUM(amount), 0) AS drawn").
		Where("type = ? AND grant_id IN ?", model.TxKindUsage, grantIDs).
		Group("grant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.GrantID] = row.Drawn
	}
	return result, nil
}
