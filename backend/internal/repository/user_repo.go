package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// UserRepository 登录账号数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// SetAccess 覆盖账号权限域；session 非 nil 时同时更新主席团会场
	SetAccess(ctx context.Context, id string, access []string, session *string) error
	DeleteBySchool(ctx context.Context, school string) error
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) SetAccess(ctx context.Context, id string, access []string, session *string) error {
	fields := map[string]interface{}{"access": datatypes.NewJSONType(access)}
	if session != nil {
		fields["session_id"] = *session
	}
	return affected(r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(fields))
}

func (r *userRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).
		Where("school_id = ? AND reserved = ?", school, false).
		Delete(&model.User{}).Error
}
