package settlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// HistoryFilter narrows settlement listings.
type HistoryFilter struct {
	UserID *uuid.UUID
	Status *enums.SettlementStatus
}

// Repository provides settlement persistence and the unsettled-order
// queries the aggregation runs on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.PaymentSettlement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentSettlement, error)
	List(ctx context.Context, filter HistoryFilter, params pagination.Params) ([]models.PaymentSettlement, string, error)
	UnsettledSellerOrders(ctx context.Context) ([]models.Order, error)
	UnsettledDeliveryOrders(ctx context.Context) ([]models.Order, error)
	FindOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	StampOrders(ctx context.Context, settlementID uuid.UUID, orderIDs []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository over the provided
// connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, settlement *models.PaymentSettlement) error {
	if err := r.db.WithContext(ctx).Create(settlement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create settlement")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentSettlement, error) {
	var settlement models.PaymentSettlement
	err := r.db.WithContext(ctx).First(&settlement, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find settlement")
	}
	return &settlement, nil
}

func (r *repository) List(ctx context.Context, filter HistoryFilter, params pagination.Params) ([]models.PaymentSettlement, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var settlements []models.PaymentSettlement
	if err := query.Find(&settlements).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list settlements")
	}

	next := ""
	if len(settlements) > limit {
		settlements = settlements[:limit]
		last := settlements[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return settlements, next, nil
}

func (r *repository) UnsettledSellerOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("settlement_id IS NULL AND order_status IN ?", []enums.OrderStatus{
			enums.OrderStatusConfirmed,
			enums.OrderStatusDelivered,
		}).
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unsettled seller orders")
	}
	return orders, nil
}

func (r *repository) UnsettledDeliveryOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("settlement_id IS NULL AND order_status = ? AND delivery_partner_id IS NOT NULL",
			enums.OrderStatusDelivered).
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unsettled delivery orders")
	}
	return orders, nil
}

func (r *repository) FindOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find orders")
	}
	return orders, nil
}

// StampOrders marks every order as settled, guarded so an order already
// claimed by another settlement is never restamped. Callers compare the
// affected count against the batch size.
func (r *repository) StampOrders(ctx context.Context, settlementID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND settlement_id IS NULL", orderIDs).
		Update("settlement_id", settlementID)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "stamp settlement")
	}
	return result.RowsAffected, nil
}
