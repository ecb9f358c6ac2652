package service

import (
	"errors"
	"fmt"
)

// 账本错误类别，调用方通过 errors.Is 判断
var (
	ErrInsufficientCredits = errors.New("积分不足")
	ErrNotEligible         = errors.New("需要有效的付费积分才能分享")
	ErrRecipientNotFound   = errors.New("接收用户不存在")
	ErrAlreadyShared       = errors.New("已向该用户分享过积分")
	ErrStorageConflict     = errors.New("积分记录并发冲突，请重试")
	ErrLedgerFatal         = errors.New("账本内部错误")
	ErrInvalidLedgerInput  = errors.New("账本参数无效")
)

// LedgerError 账本操作错误，Kind 为上面的类别之一
type LedgerError struct {
	Op   string
	Kind error
	Err  error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap 同时暴露类别和底层错误
func (e *LedgerError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func ledgerErr(op string, kind error, err error) *LedgerError {
	return &LedgerError{Op: op, Kind: kind, Err: err}
}

// LedgerErrorKind 返回错误所属类别，非账本错误返回 nil
func LedgerErrorKind(err error) error {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return nil
}

// IsLedgerFatal 判断是否为需要人工对账的错误
func IsLedgerFatal(err error) bool {
	return errors.Is(err, ErrLedgerFatal) || errors.Is(err, ErrStorageConflict)
}

// ledgerKindLabel 用于日志和监控的类别标签
func ledgerKindLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, ErrAlreadyShared):
		return "already_shared"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, ErrInvalidLedgerInput):
		return "invalid_input"
	default:
		return "fatal"
	}
}
