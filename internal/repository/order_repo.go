package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/models"
)

// OrderRepository 订单快照只读访问，订单由交易系统写入
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Find 按 ID 查询订单，withItems 为 true 时按明细 ID 顺序加载明细。
// 不存在时返回 gorm.ErrRecordNotFound
func (r *OrderRepository) Find(ctx context.Context, id int64, withItems bool) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	if withItems {
		q = q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}

	order := new(models.Order)
	if err := q.Take(order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return order, nil
}
