package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/models"
)

// MemberRepository 会员仓储
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建会员仓储
func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *MemberRepository) WithTx(tx *gorm.DB) *MemberRepository {
	return &MemberRepository{db: tx}
}

// Create 创建会员
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetByID 根据 ID 获取会员
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// GetParentID 只取会员的上级 ID，会员不存在时返回 gorm.ErrRecordNotFound
func (r *MemberRepository) GetParentID(ctx context.Context, id int64) (*int64, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Select("id", "parent_id").First(&member, id).Error
	if err != nil {
		return nil, err
	}
	return member.ParentID, nil
}

// UpdateParent 更新推荐关系
func (r *MemberRepository) UpdateParent(ctx context.Context, id int64, parentID, indirectParentID *int64) error {
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"parent_id":          parentID,
			"indirect_parent_id": indirectParentID,
		}).Error
}
