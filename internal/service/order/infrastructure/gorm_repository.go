package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"supplyboost/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM/MySQL 实现。
// 并发控制走乐观锁：UPDATE 带 version 条件，抢不到就返回 ErrVersionConflict。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 建表，只在服务启动时调用。
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderItemModel{})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&m), nil
}

func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where("order_number = ?", orderNumber).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&m), nil
}

// Save 插入新聚合或带版本校验地更新既有聚合。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if order.Version == 0 {
		return r.insert(ctx, order)
	}
	return r.update(ctx, order)
}

func (r *GormOrderRepository) insert(ctx context.Context, order *domain.Order) error {
	m := toOrderModel(order)
	m.Version = 1
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	// 回填数据库生成的主键和版本
	order.ID = m.ID
	order.Version = m.Version
	return nil
}

func (r *GormOrderRepository) update(ctx context.Context, order *domain.Order) error {
	m := toOrderModel(order)

	// 订单行不可变，更新只触碰 orders 表本身
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":          m.Status,
			"payment_ref":     m.PaymentRef,
			"payment_method":  m.PaymentMethod,
			"shipment_ref":    m.ShipmentRef,
			"tracking_number": m.TrackingNumber,
			"shipped_at":      m.ShippedAt,
			"delivered_at":    m.DeliveredAt,
			"updated_at":      m.UpdatedAt,
			"version":         order.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 版本不匹配：并发提交抢先了，调用方需要重读再评估
		return domain.ErrVersionConflict
	}
	order.Version++
	return nil
}

func (r *GormOrderRepository) FindByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").
		Where("status = ?", status).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toDomainOrder(&models[i]))
	}
	return orders, nil
}
