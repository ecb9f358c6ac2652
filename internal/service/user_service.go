package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/repository"
)

// PaidAccessChecker 判断用户当前是否为付费用户
type PaidAccessChecker interface {
	HasPaidAccess(ctx context.Context, userID int64) (bool, error)
}

type UserService struct {
	userRepo *repository.UserRepository
	paid     PaidAccessChecker
}

func NewUserService(userRepo *repository.UserRepository, paid PaidAccessChecker) *UserService {
	return &UserService{
		userRepo: userRepo,
		paid:     paid,
	}
}

// GetProfile 获取用户详情
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.WithContext(ctx).GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	info := buildUserInfo(user)
	// is_paid 列只是定时刷新的缓存，这里以有效购买积分为准
	if s.paid != nil {
		paid, err := s.paid.HasPaidAccess(ctx, userID)
		if err != nil {
			return nil, err
		}
		info.IsPaid = paid
	}
	return info, nil
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	repo := s.userRepo.WithContext(ctx)

	user, err := repo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	fields := make(map[string]interface{})

	// 检查用户名是否已被占用
	if req.Username != nil && *req.Username != user.Username {
		exists, err := repo.ExistsByUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUsernameExists
		}
		fields["username"] = *req.Username
	}

	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}

	// 只更新资料字段，避免覆盖并发扣减后的积分余额
	if len(fields) > 0 {
		if err := repo.UpdateFields(userID, fields); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrUsernameExists
			}
			return nil, err
		}
	}

	return s.GetProfile(ctx, userID)
}
