package settlements

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/users"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/money"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service computes pending payouts and records settlements.
type Service interface {
	PendingSettlements(ctx context.Context) (*PendingReport, error)
	CreateSettlement(ctx context.Context, actorID uuid.UUID, input CreateInput) (*SettlementDetail, error)
	History(ctx context.Context, filter HistoryFilter, params pagination.Params) (*SettlementPage, error)
	GetSettlement(ctx context.Context, id uuid.UUID) (*SettlementDetail, error)
}

// PendingAggregate is one payee's unsettled earnings: seller subtotals
// and delivery fees merged per user.
type PendingAggregate struct {
	UserID           uuid.UUID       `json:"user_id"`
	UserType         enums.PayeeType `json:"user_type"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	OrderIDs         []uuid.UUID     `json:"order_ids"`
}

// PendingReport is the aggregation plus its grand totals.
type PendingReport struct {
	Pending         []PendingAggregate `json:"pending"`
	TotalCommission decimal.Decimal    `json:"total_commission"`
	TotalNetPayable decimal.Decimal    `json:"total_net_payable"`
	PayeeCount      int                `json:"payee_count"`
}

// CreateInput is an admin's settlement request.
type CreateInput struct {
	UserID   uuid.UUID
	OrderIDs []uuid.UUID
	Notes    string
}

// SettlementDetail is a settlement plus its resolved orders.
type SettlementDetail struct {
	Settlement models.PaymentSettlement `json:"settlement"`
	Orders     []models.Order           `json:"orders"`
}

// SettlementPage is a cursor-paginated history listing.
type SettlementPage struct {
	Settlements []models.PaymentSettlement `json:"settlements"`
	NextCursor  string                     `json:"next_cursor,omitempty"`
}

type service struct {
	repo       Repository
	users      users.Repository
	tx         txRunner
	commission decimal.Decimal
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires the settlement engine. The commission rate is a
// fraction, e.g. 0.05 for five percent.
func NewService(repo Repository, usersRepo users.Repository, tx txRunner, commission decimal.Decimal, logg *logger.Logger) (Service, error) {
	if repo == nil || usersRepo == nil {
		return nil, fmt.Errorf("settlement repositories required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if commission.IsNegative() || commission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate must be in [0, 1)")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		users:      usersRepo,
		tx:         tx,
		commission: commission,
		logg:       logg,
		now:        time.Now,
	}, nil
}

type pendingEntry struct {
	gross    decimal.Decimal
	orderIDs map[uuid.UUID]bool
}

// PendingSettlements merges seller earnings (pre-discount subtotals of
// unsettled CONFIRMED and DELIVERED orders) with delivery-partner
// earnings (delivery fees of unsettled DELIVERED orders), one aggregate
// per user.
func (s *service) PendingSettlements(ctx context.Context) (*PendingReport, error) {
	sellerOrders, err := s.repo.UnsettledSellerOrders(ctx)
	if err != nil {
		return nil, err
	}
	deliveryOrders, err := s.repo.UnsettledDeliveryOrders(ctx)
	if err != nil {
		return nil, err
	}

	entries := make(map[uuid.UUID]*pendingEntry)
	add := func(userID uuid.UUID, amount decimal.Decimal, orderID uuid.UUID) {
		entry, ok := entries[userID]
		if !ok {
			entry = &pendingEntry{gross: decimal.Zero, orderIDs: make(map[uuid.UUID]bool)}
			entries[userID] = entry
		}
		entry.gross = entry.gross.Add(amount)
		entry.orderIDs[orderID] = true
	}

	for _, order := range sellerOrders {
		add(order.SellerID, order.OriginalSubtotal, order.ID)
	}
	for _, order := range deliveryOrders {
		add(*order.DeliveryPartnerID, order.DeliveryFee, order.ID)
	}

	userIDs := make([]uuid.UUID, 0, len(entries))
	for userID := range entries {
		userIDs = append(userIDs, userID)
	}
	payeeTypes, err := s.resolvePayeeTypes(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	report := &PendingReport{
		Pending:         make([]PendingAggregate, 0, len(entries)),
		TotalCommission: decimal.Zero,
		TotalNetPayable: decimal.Zero,
	}
	for userID, entry := range entries {
		commission := money.Quantize(entry.gross.Mul(s.commission))
		net := money.Quantize(entry.gross.Sub(commission))
		orderIDs := make([]uuid.UUID, 0, len(entry.orderIDs))
		for orderID := range entry.orderIDs {
			orderIDs = append(orderIDs, orderID)
		}
		sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i].String() < orderIDs[j].String() })

		report.Pending = append(report.Pending, PendingAggregate{
			UserID:           userID,
			UserType:         payeeTypes[userID],
			GrossAmount:      money.Quantize(entry.gross),
			CommissionAmount: commission,
			NetAmount:        net,
			OrderIDs:         orderIDs,
		})
		report.TotalCommission = report.TotalCommission.Add(commission)
		report.TotalNetPayable = report.TotalNetPayable.Add(net)
	}
	report.PayeeCount = len(report.Pending)
	sort.Slice(report.Pending, func(i, j int) bool {
		return report.Pending[i].UserID.String() < report.Pending[j].UserID.String()
	})
	return report, nil
}

// CreateSettlement validates every order in the batch and persists the
// settlement, stamping the orders in the same transaction so they can
// never be settled twice.
func (s *service) CreateSettlement(ctx context.Context, actorID uuid.UUID, input CreateInput) (*SettlementDetail, error) {
	if len(input.OrderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement requires at least one order")
	}
	ids := dedupeIDs(input.OrderIDs)

	payee, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	var detail *SettlementDetail
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		batch, err := repo.FindOrdersByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(batch) != len(ids) {
			return pkgerrors.New(pkgerrors.CodeValidation, "settlement references unknown orders")
		}

		gross := decimal.Zero
		for i := range batch {
			order := &batch[i]
			contribution, err := settlementContribution(order, input.UserID)
			if err != nil {
				return err
			}
			gross = gross.Add(contribution)
		}

		commission := money.Quantize(gross.Mul(s.commission))
		net := money.Quantize(gross.Sub(commission))

		settlement := &models.PaymentSettlement{
			ID:               uuid.New(),
			UserID:           input.UserID,
			UserType:         payeeTypeFor(payee),
			Amount:           money.Quantize(gross),
			CommissionAmount: commission,
			NetAmount:        net,
			SettlementDate:   s.now().UTC(),
			Status:           enums.SettlementStatusCompleted,
			OrderIDs:         ids,
		}
		if input.Notes != "" {
			notes := input.Notes
			settlement.Notes = &notes
		}
		if err := repo.Create(ctx, settlement); err != nil {
			return err
		}

		stamped, err := repo.StampOrders(ctx, settlement.ID, ids)
		if err != nil {
			return err
		}
		if stamped != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "some orders were already settled")
		}

		detail = &SettlementDetail{Settlement: *settlement, Orders: batch}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"settlement_id": detail.Settlement.ID.String(),
		"user_id":       input.UserID.String(),
		"actor_id":      actorID.String(),
		"net_amount":    detail.Settlement.NetAmount.StringFixed(2),
	}), "settlement created")

	return detail, nil
}

func (s *service) History(ctx context.Context, filter HistoryFilter, params pagination.Params) (*SettlementPage, error) {
	settlements, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, err
	}
	return &SettlementPage{Settlements: settlements, NextCursor: next}, nil
}

func (s *service) GetSettlement(ctx context.Context, id uuid.UUID) (*SettlementDetail, error) {
	settlement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.repo.FindOrdersByIDs(ctx, settlement.OrderIDs)
	if err != nil {
		return nil, err
	}
	return &SettlementDetail{Settlement: *settlement, Orders: resolved}, nil
}

// settlementContribution returns what the order pays the user: the
// pre-discount subtotal for its seller, the delivery fee for its
// delivery partner, or both when the user filled both roles.
func settlementContribution(order *models.Order, userID uuid.UUID) (decimal.Decimal, error) {
	if order.IsSettled() {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation,
			"order %s is already settled", order.OrderNumber)
	}

	contribution := decimal.Zero
	qualified := false

	if order.SellerID == userID &&
		(order.OrderStatus == enums.OrderStatusConfirmed || order.OrderStatus == enums.OrderStatusDelivered) {
		contribution = contribution.Add(order.OriginalSubtotal)
		qualified = true
	}
	if order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == userID &&
		order.OrderStatus == enums.OrderStatusDelivered {
		contribution = contribution.Add(order.DeliveryFee)
		qualified = true
	}
	if !qualified {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation,
			"order %s does not qualify for this payee", order.OrderNumber)
	}
	return contribution, nil
}

// resolvePayeeTypes classifies each user: anyone holding a seller role
// settles as a seller even if they also deliver.
func (s *service) resolvePayeeTypes(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]enums.PayeeType, error) {
	resolved, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	types := make(map[uuid.UUID]enums.PayeeType, len(userIDs))
	for _, userID := range userIDs {
		types[userID] = enums.PayeeTypeDeliveryPartner
	}
	for i := range resolved {
		types[resolved[i].ID] = payeeTypeFor(&resolved[i])
	}
	return types, nil
}

func payeeTypeFor(user *models.User) enums.PayeeType {
	if user.IsSeller() {
		return enums.PayeeTypeSeller
	}
	return enums.PayeeTypeDeliveryPartner
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
