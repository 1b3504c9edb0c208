package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/apperr"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
)

const aggregateType = "order"

type LineRequest struct {
	ItemID   string
	Quantity int
}

type PlaceOrder struct {
	OwnerID       *string
	Lines         []LineRequest
	PaymentMethod string
	Contact       domain.Contact
	Manual        bool
}

type ClaimRequest struct {
	OrderID    string
	ClaimantID string
	Contact    domain.Contact
	Accept     bool
}

type Options struct {
	Policy         domain.TransitionPolicy
	Location       *time.Location
	MaxCASAttempts int
	Clock          Clock
	NewID          func() string
}

// Service is the order ledger: it owns order creation and every lifecycle
// mutation, and notifies after each committed change.
type Service struct {
	repo     OrderRepository
	seq      Sequencer
	catalog  Catalog
	notifier Notifier
	tracer   trace.Tracer

	policy      domain.TransitionPolicy
	loc         *time.Location
	maxAttempts int
	now         Clock
	newID       func() string
}

func NewService(repo OrderRepository, seq Sequencer, cat Catalog, notifier Notifier, opts Options) *Service {
	s := &Service{
		repo:        repo,
		seq:         seq,
		catalog:     cat,
		notifier:    notifier,
		tracer:      otel.Tracer("order-ledger"),
		policy:      opts.Policy,
		loc:         opts.Location,
		maxAttempts: opts.MaxCASAttempts,
		now:         opts.Clock,
		newID:       opts.NewID,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 5
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) CreateOrder(ctx context.Context, req PlaceOrder) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder")
	defer span.End()

	o, err := s.createOrder(ctx, req)
	if err != nil {
		recordErr(span, err)
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.OrderNumber))
	s.notifier.OrderCreated(ctx, o)
	return o, nil
}

func (s *Service) createOrder(ctx context.Context, req PlaceOrder) (domain.Order, error) {
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return domain.Order{}, err
	}
	if len(req.Lines) == 0 {
		return domain.Order{}, domain.ErrNoLineItems
	}
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return domain.Order{}, fmt.Errorf("item %s: %w", line.ItemID, domain.ErrInvalidItemQuantity)
		}
	}
	if req.Manual {
		if !req.Contact.HasIdentity() {
			return domain.Order{}, domain.ErrContactRequired
		}
	} else if req.OwnerID == nil || strings.TrimSpace(*req.OwnerID) == "" {
		return domain.Order{}, domain.ErrOwnerRequired
	}

	now := s.now()
	items := make([]domain.OrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		item, err := s.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, catalog.ErrItemNotFound) {
				return domain.Order{}, fmt.Errorf("item %s: %w", line.ItemID, domain.ErrItemNotFound)
			}
			return domain.Order{}, apperr.Transient("catalog_unavailable", "menu lookup is temporarily unavailable, retry", fmt.Errorf("get item %s: %w", line.ItemID, err))
		}
		if !item.Available {
			return domain.Order{}, fmt.Errorf("item %s: %w", line.ItemID, domain.ErrItemUnavailable)
		}
		items = append(items, domain.OrderItem{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.EffectivePrice(now),
			Quantity:  line.Quantity,
		})
	}

	day := now.In(s.loc)
	n, err := s.seq.Next(ctx, domain.DatePrefix(day))
	if err != nil {
		return domain.Order{}, apperr.Transient("sequencer_unavailable", "order numbering is temporarily unavailable, retry", err)
	}

	o, err := domain.NewOrder(domain.NewOrderParams{
		ID:            s.newID(),
		OrderNumber:   domain.OrderNumber(day, n),
		OwnerID:       req.OwnerID,
		Items:         items,
		PaymentMethod: method,
		Contact:       req.Contact.Normalized(),
		Manual:        req.Manual,
		Now:           now,
	})
	if err != nil {
		return domain.Order{}, err
	}
	o.Version = 1

	rec, err := outbox.NewRecord(ctx, aggregateType, o.ID, domain.EventOrderCreated, domain.NewOrderCreated(o))
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.Insert(ctx, o, rec); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, domain.ErrMissingOrderID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) AdvanceStatus(ctx context.Context, id string, requested domain.OrderStatus) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "AdvanceStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status.requested", string(requested)),
	))
	defer span.End()

	o, err := s.mutate(ctx, id, func(o *domain.Order) (string, any, error) {
		from := o.Status
		if err := o.AdvanceStatus(requested, s.policy, s.now()); err != nil {
			return "", nil, err
		}
		return domain.EventOrderStatusUpdated, domain.OrderStatusUpdated{
			OrderID:       o.ID,
			From:          from,
			To:            o.Status,
			PaymentStatus: o.PaymentStatus,
			UpdatedAt:     o.UpdatedAt,
		}, nil
	})
	if err != nil {
		recordErr(span, err)
		return domain.Order{}, err
	}
	s.notifier.OrderUpdated(ctx, o)
	return o, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, id string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ConfirmPayment", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	o, err := s.mutate(ctx, id, func(o *domain.Order) (string, any, error) {
		if err := o.ConfirmPayment(s.now()); err != nil {
			return "", nil, err
		}
		return domain.EventOrderPaymentConfirmed, domain.OrderPaymentConfirmed{
			OrderID:   o.ID,
			Status:    o.Status,
			UpdatedAt: o.UpdatedAt,
		}, nil
	})
	if err != nil {
		recordErr(span, err)
		return domain.Order{}, err
	}
	s.notifier.PaymentConfirmed(ctx, o)
	return o, nil
}

func (s *Service) ClaimOrder(ctx context.Context, req ClaimRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ClaimOrder", trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer span.End()

	if strings.TrimSpace(req.ClaimantID) == "" {
		recordErr(span, domain.ErrOwnerRequired)
		return domain.Order{}, domain.ErrOwnerRequired
	}
	o, err := s.mutate(ctx, req.OrderID, func(o *domain.Order) (string, any, error) {
		if err := o.Claim(req.ClaimantID, req.Contact, req.Accept, s.now()); err != nil {
			return "", nil, err
		}
		return domain.EventOrderClaimed, domain.OrderClaimed{
			OrderID:     o.ID,
			OwnerID:     o.OwnerID,
			ClaimStatus: o.ClaimStatus,
			UpdatedAt:   o.UpdatedAt,
		}, nil
	})
	if err != nil {
		recordErr(span, err)
		return domain.Order{}, err
	}
	return o, nil
}

type mutation func(o *domain.Order) (eventType string, payload any, err error)

// mutate runs read / apply / compare-and-set. A lost race re-reads and
// re-applies, so business rules are always checked against the winning state.
func (s *Service) mutate(ctx context.Context, id string, apply mutation) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, domain.ErrMissingOrderID
	}
	for attempt := 1; ; attempt++ {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		expected := o.Version

		eventType, payload, err := apply(&o)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
		}
		o.Version = expected + 1

		rec, err := outbox.NewRecord(ctx, aggregateType, o.ID, eventType, payload)
		if err != nil {
			return domain.Order{}, err
		}
		err = s.repo.Update(ctx, o, expected, rec)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Order{}, err
		}
		if attempt >= s.maxAttempts {
			return domain.Order{}, fmt.Errorf("order %s after %d attempts: %w", id, attempt, domain.ErrConcurrentUpdate)
		}
	}
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperr.CodeOf(err))
}
