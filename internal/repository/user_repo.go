package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/codemorph_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 绑定到事务
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) WithContext(ctx context.Context) *UserRepository {
	return &UserRepository{db: r.db.WithContext(ctx)}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs 批量获取用户，按 ID 建索引
func (r *UserRepository) GetByIDs(ids []int64) (map[int64]*model.User, error) {
	result := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*model.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// LockByID 加行锁读取用户（SELECT ... FOR UPDATE），必须在事务内调用
func (r *UserRepository) LockByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByGithubID(githubID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("github_id = ?", githubID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByVerificationCode(code string) (*model.User, error) {
	var user model.User
	err := r.db.Where("verification_code = ?", code).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// DebitFree 扣减免费积分，余额不足时不更新并返回 false
func (r *UserRepository) DebitFree(id int64, cost int) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND free_credits >= ?", id, cost).
		Update("free_credits", gorm.Expr("free_credits - ?", cost))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreditFree 增加免费积分
func (r *UserRepository) CreditFree(id int64, amount int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("free_credits", gorm.Expr("free_credits + ?", amount)).Error
}

func (r *UserRepository) SetPaid(id int64, paid bool) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Update("is_paid", paid).Error
}

// ListBelowFreeCredits 免费积分低于额度的用户
func (r *UserRepository) ListBelowFreeCredits(allowance, limit int, afterID int64) ([]*model.User, error) {
	var users []*model.User
	err := r.db.Where("free_credits < ? AND id > ?", allowance, afterID).
		Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}

// RefreshPaidFlags 根据有效购买积分刷新 is_paid 缓存，返回变更行数
func (r *UserRepository) RefreshPaidFlags(now time.Time) (int64, error) {
	const activeGrant = "SELECT 1 FROM purchased_credits pc WHERE pc.user_id = users.id AND pc.start_date <= ? AND pc.end_date > ?"

	cleared := r.db.Model(&model.User{}).
		Where("is_paid = ? AND NOT EXISTS ("+activeGrant+")", true, now, now).
		Update("is_paid", false)
	if cleared.Error != nil {
		return 0, cleared.Error
	}

	marked := r.db.Model(&model.User{}).
		Where("is_paid = ? AND EXISTS ("+activeGrant+")", false, now, now).
		Update("is_paid", true)
	if marked.Error != nil {
		return cleared.RowsAffected, marked.Error
	}

	return cleared.RowsAffected + marked.RowsAffected, nil
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
