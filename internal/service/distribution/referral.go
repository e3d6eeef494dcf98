package distribution

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/repository"
)

// IsSelfPurchase 买家即分享人或买家的绑定上级
func IsSelfPurchase(buyerID int64, shareUserID, parentID *int64) bool {
	if shareUserID != nil && *shareUserID == buyerID {
		return true
	}
	return parentID != nil && *parentID == buyerID
}

// ReferralResolver 推荐关系解析
type ReferralResolver struct {
	db         *gorm.DB
	memberRepo *repository.MemberRepository
	maxDepth   int
}

// NewReferralResolver 创建推荐关系解析器
func NewReferralResolver(db *gorm.DB, memberRepo *repository.MemberRepository, maxDepth int) *ReferralResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxReferralDepth
	}
	return &ReferralResolver{db: db, memberRepo: memberRepo, maxDepth: maxDepth}
}

// MaxDepth 上级链路最大遍历层数
func (r *ReferralResolver) MaxDepth() int {
	return r.maxDepth
}

// HasCycle 从 candidateParentID 沿上级指针最多走 maxDepth 步，遇到 memberID 即返回 true。
// 链路中断或步数耗尽返回 false。tx 为 nil 时不在事务中查询。
func (r *ReferralResolver) HasCycle(ctx context.Context, tx *gorm.DB, candidateParentID, memberID int64, maxDepth int) (bool, error) {
	repo := r.memberRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	current := candidateParentID
	for hop := 0; hop < maxDepth; hop++ {
		if current == memberID {
			return true, nil
		}
		parentID, err := repo.GetParentID(ctx, current)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if parentID == nil {
			return false, nil
		}
		current = *parentID
	}
	return false, nil
}

// Bind 绑定推荐上级，间推上级取上级的上级
func (r *ReferralResolver) Bind(ctx context.Context, memberID, parentID int64) error {
	if memberID == parentID {
		return errors.ErrReferralSelfBind
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.memberRepo.WithTx(tx)

		if _, err := repo.GetByID(ctx, memberID); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrMemberNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		parent, err := repo.GetByID(ctx, parentID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrMemberNotFound.WithMessage("上级会员不存在")
			}
			return errors.ErrDatabaseError.WithError(err)
		}

		cycle, err := r.HasCycle(ctx, tx, parentID, memberID, r.maxDepth)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if cycle {
			logger.Warn("Referral bind rejected: cycle",
				logger.MemberID(memberID),
				zap.Int64("parent_id", parentID),
			)
			return errors.ErrReferralCycle
		}

		if err := repo.UpdateParent(ctx, memberID, &parentID, parent.ParentID); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		return nil
	})
}
