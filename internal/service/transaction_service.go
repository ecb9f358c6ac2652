package service

import (
	"context"
	"strings"
	"time"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/repository"
)

const (
	defaultTxPageSize = 20
	maxTxPageSize     = 100
)

type TransactionService struct {
	txRepo *repository.TransactionRepository
}

func NewTransactionService(txRepo *repository.TransactionRepository) *TransactionService {
	return &TransactionService{txRepo: txRepo}
}

// List 分页查询流水，query 中的分页参数会被规范化
// search 为 2006-01-02 格式时额外匹配当天的流水
func (s *TransactionService) List(ctx context.Context, userID int64, query *dto.TransactionQuery) ([]*dto.TransactionItem, int64, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = defaultTxPageSize
	}
	if query.PageSize > maxTxPageSize {
		query.PageSize = maxTxPageSize
	}

	filter := repository.TransactionFilter{
		Search: strings.TrimSpace(query.Search),
	}
	if kind := strings.ToLower(query.Type); kind != "" && kind != "all" {
		filter.Kind = kind
	}
	if day, err := time.ParseInLocation("2006-01-02", filter.Search, time.UTC); err == nil {
		filter.Day = &day
	}

	records, total, err := s.txRepo.WithContext(ctx).ListByUser(userID, filter, query.Page, query.PageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.TransactionItem, 0, len(records))
	for _, record := range records {
		items = append(items, toTransactionItem(record))
	}
	return items, total, nil
}

func toTransactionItem(record *model.CreditTransaction) *dto.TransactionItem {
	item := &dto.TransactionItem{
		ID:           record.ID,
		Type:         record.Kind,
		Amount:       record.Amount,
		CreditSource: record.CreditSource,
		OwnerUserID:  record.OwnerUserID,
		CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(record.Metadata) > 0 {
		item.Meta = map[string]interface{}(record.Metadata)
	}
	return item
}
