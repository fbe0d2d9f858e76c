package orders

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/geo"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// The seller walks an order through preparation, the assigned delivery
// partner through the delivery leg. Transitions are strictly single-step.
var (
	sellerFlow = []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReadyToShip,
	}
	deliveryFlow = []enums.OrderStatus{
		enums.OrderStatusDeliveryPartnerAssigned,
		enums.OrderStatusPickedUp,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	}
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	OrderStatusChanged(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, notifySeller bool)
	OrderClaimed(ctx context.Context, orderID uuid.UUID)
}

// Service exposes order reads, the status state machine, and delivery
// claims.
type Service interface {
	GetOrder(ctx context.Context, viewerID uuid.UUID, role enums.Role, orderID uuid.UUID) (*OrderDetail, error)
	ListMine(ctx context.Context, buyerID uuid.UUID, role enums.Role, params pagination.Params) (*OrderPage, error)
	ListSeller(ctx context.Context, sellerID uuid.UUID, role enums.Role, params pagination.Params) (*OrderPage, error)
	ListDeliveryMine(ctx context.Context, partnerID uuid.UUID, role enums.Role, params pagination.Params) (*OrderPage, error)
	AvailableDeliveries(ctx context.Context, role enums.Role, origin geo.Point, offset, limit int) (*AvailablePage, error)
	UpdateStatus(ctx context.Context, actorID uuid.UUID, role enums.Role, orderID uuid.UUID, target enums.OrderStatus, notes string) (*OrderDetail, error)
	Claim(ctx context.Context, partnerID uuid.UUID, role enums.Role, orderID uuid.UUID) (*OrderDetail, error)
}

// Actions tells a viewer what they may do with an order right now.
type Actions struct {
	NextStatus *enums.OrderStatus `json:"next_status,omitempty"`
	NextLabel  string             `json:"next_label,omitempty"`
	CanCancel  bool               `json:"can_cancel"`
}

// OrderDetail is one order plus the viewer's available actions.
type OrderDetail struct {
	Order   models.Order `json:"order"`
	Actions Actions      `json:"actions"`
}

// OrderPage is a cursor-paginated listing.
type OrderPage struct {
	Orders     []OrderDetail `json:"orders"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// AvailableDelivery is a claimable order annotated with how far the
// partner is from the pickup and how long the delivery leg is.
type AvailableDelivery struct {
	Order             models.Order `json:"order"`
	PickupDistanceKm  float64      `json:"pickup_distance_km"`
	JourneyDistanceKm float64      `json:"journey_distance_km"`
}

// AvailablePage is an offset-paginated claimable listing.
type AvailablePage struct {
	Deliveries []AvailableDelivery `json:"deliveries"`
	Total      int64               `json:"total"`
	Offset     int                 `json:"offset"`
	Limit      int                 `json:"limit"`
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifier
	logg     *logger.Logger
}

// NewService wires the order state machine.
func NewService(repo Repository, tx txRunner, n notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if n == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, notifier: n, logg: logg}, nil
}

func (s *service) GetOrder(ctx context.Context, viewerID uuid.UUID, role enums.Role, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, viewerID, role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
	}
	return &OrderDetail{Order: *order, Actions: actionsFor(order, viewerID, role)}, nil
}

func (s *service) ListMine(ctx context.Context, buyerID uuid.UUID, role enums.Role, params pagination.Params) (*OrderPage, error) {
	orders, next, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, err
	}
	return buildPage(orders, next, buyerID, role), nil
}

func (s *service) ListSeller(ctx context.Context, sellerID uuid.UUID, role enums.Role, params pagination.Params) (*OrderPage, error) {
	if !role.IsSeller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller role required")
	}
	orders, next, err := s.repo.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, err
	}
	return buildPage(orders, next, sellerID, role), nil
}

func (s *service) ListDeliveryMine(ctx context.Context, partnerID uuid.UUID, role enums.Role, params pagination.Params) (*OrderPage, error) {
	if role != enums.RoleDeliveryPartner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery partner role required")
	}
	orders, next, err := s.repo.ListByDeliveryPartner(ctx, partnerID, params)
	if err != nil {
		return nil, err
	}
	return buildPage(orders, next, partnerID, role), nil
}

func (s *service) AvailableDeliveries(ctx context.Context, role enums.Role, origin geo.Point, offset, limit int) (*AvailablePage, error) {
	if role != enums.RoleDeliveryPartner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery partner role required")
	}
	limit = pagination.NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	orders, total, err := s.repo.ListClaimable(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	page := &AvailablePage{
		Deliveries: make([]AvailableDelivery, 0, len(orders)),
		Total:      total,
		Offset:     offset,
		Limit:      limit,
	}
	for _, order := range orders {
		pickup := geo.Point{Lat: order.PickupAddress.Lat, Lng: order.PickupAddress.Lng}
		delivery := geo.Point{Lat: order.DeliveryAddress.Lat, Lng: order.DeliveryAddress.Lng}
		page.Deliveries = append(page.Deliveries, AvailableDelivery{
			Order:             order,
			PickupDistanceKm:  roundKm(geo.DistanceKm(origin, pickup)),
			JourneyDistanceKm: roundKm(geo.DistanceKm(pickup, delivery)),
		})
	}
	return page, nil
}

// UpdateStatus applies a strict single-step transition, or a
// cancellation when the seller is still allowed to cancel.
func (s *service) UpdateStatus(ctx context.Context, actorID uuid.UUID, role enums.Role, orderID uuid.UUID, target enums.OrderStatus, notes string) (*OrderDetail, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if target == enums.OrderStatusReturned || target == enums.OrderStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "returns and refunds are handled separately")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		actions := actionsFor(order, actorID, role)
		allowed := false
		switch {
		case actions.NextStatus != nil && *actions.NextStatus == target:
			allowed = true
		case target == enums.OrderStatusCancelled && actions.CanCancel:
			allowed = true
		}
		if !allowed {
			if !isActor(order, actorID, role) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to update this order")
			}
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"cannot move order from %s to %s", order.OrderStatus, target)
		}

		if err := repo.UpdateStatus(ctx, order.ID, target); err != nil {
			return err
		}

		actor := actorID
		entry := &models.OrderStatusHistory{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Status:      target,
			UpdatedByID: &actor,
		}
		if notes != "" {
			entry.Notes = &notes
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			return err
		}

		order.OrderStatus = target
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifySeller := target == enums.OrderStatusCancelled ||
		target == enums.OrderStatusReturned ||
		target == enums.OrderStatusRefunded
	s.notifier.OrderStatusChanged(ctx, updated.ID, target, notifySeller)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": updated.ID.String(),
		"status":   target.String(),
	}), "order status updated")

	return &OrderDetail{Order: *updated, Actions: actionsFor(updated, actorID, role)}, nil
}

// Claim assigns the acting delivery partner to a ready order. The
// conditional update makes racing partners lose cleanly.
func (s *service) Claim(ctx context.Context, partnerID uuid.UUID, role enums.Role, orderID uuid.UUID) (*OrderDetail, error) {
	if role != enums.RoleDeliveryPartner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery partner role required")
	}

	var claimed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByID(ctx, orderID); err != nil {
			return err
		}

		won, err := repo.Claim(ctx, orderID, partnerID)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is no longer available")
		}

		actor := partnerID
		if err := repo.AppendHistory(ctx, &models.OrderStatusHistory{
			ID:          uuid.New(),
			OrderID:     orderID,
			Status:      enums.OrderStatusDeliveryPartnerAssigned,
			UpdatedByID: &actor,
		}); err != nil {
			return err
		}

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		claimed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.OrderClaimed(ctx, claimed.ID)
	s.logg.Info(s.logg.WithOrderID(ctx, claimed.ID.String()), "delivery claimed")

	return &OrderDetail{Order: *claimed, Actions: actionsFor(claimed, partnerID, role)}, nil
}

// actionsFor computes what the viewer may do next. A viewer outside both
// flows, or an order in a terminal state, yields no actions.
func actionsFor(order *models.Order, viewerID uuid.UUID, role enums.Role) Actions {
	if order.OrderStatus.IsTerminal() {
		return Actions{}
	}

	if isSellerActor(order, viewerID, role) {
		if next, ok := nextIn(sellerFlow, order.OrderStatus); ok {
			actions := Actions{CanCancel: canCancel(order.OrderStatus)}
			if next != nil {
				actions.NextStatus = next
				actions.NextLabel = next.Label()
			}
			return actions
		}
		return Actions{}
	}

	if isPartnerActor(order, viewerID, role) {
		if next, ok := nextIn(deliveryFlow, order.OrderStatus); ok && next != nil {
			return Actions{NextStatus: next, NextLabel: next.Label()}
		}
	}
	return Actions{}
}

// nextIn reports whether status belongs to the flow, and the status that
// follows it (nil at the flow's end).
func nextIn(flow []enums.OrderStatus, status enums.OrderStatus) (*enums.OrderStatus, bool) {
	for i, candidate := range flow {
		if candidate != status {
			continue
		}
		if i+1 < len(flow) {
			next := flow[i+1]
			return &next, true
		}
		return nil, true
	}
	return nil, false
}

func canCancel(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusPreparing:
		return true
	default:
		return false
	}
}

func isSellerActor(order *models.Order, viewerID uuid.UUID, role enums.Role) bool {
	return order.SellerID == viewerID && role == order.BuyerType.SellerRole()
}

func isPartnerActor(order *models.Order, viewerID uuid.UUID, role enums.Role) bool {
	return role == enums.RoleDeliveryPartner &&
		order.DeliveryPartnerID != nil &&
		*order.DeliveryPartnerID == viewerID
}

func isActor(order *models.Order, viewerID uuid.UUID, role enums.Role) bool {
	return isSellerActor(order, viewerID, role) || isPartnerActor(order, viewerID, role)
}

func canView(order *models.Order, viewerID uuid.UUID, role enums.Role) bool {
	if role == enums.RoleAdmin {
		return true
	}
	if order.BuyerID == viewerID {
		return true
	}
	return isActor(order, viewerID, role)
}

func buildPage(orders []models.Order, next string, viewerID uuid.UUID, role enums.Role) *OrderPage {
	page := &OrderPage{Orders: make([]OrderDetail, 0, len(orders)), NextCursor: next}
	for i := range orders {
		page.Orders = append(page.Orders, OrderDetail{
			Order:   orders[i],
			Actions: actionsFor(&orders[i], viewerID, role),
		})
	}
	return page
}

func roundKm(v float64) float64 {
	return math.Round(v*100) / 100
}
