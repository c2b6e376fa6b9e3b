package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/example/ec-shopping-cart/internal/domain/cart"

type Service struct {
	store     Store
	locker    Locker
	publisher Publisher
	clock     Clock
	agg       Aggregator
	log       *slog.Logger
	tracer    trace.Tracer

	cartsCreated  metric.Int64Counter
	cartsCanceled metric.Int64Counter
	rejected      metric.Int64Counter
}

type Option func(*Service)

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locker: &mutexLocker{},
		clock:  systemClock{},
		log:    slog.Default(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "cart")

	meter := otel.Meter(instrumentationName)
	s.cartsCreated = s.counter(meter, "cart.created", "Carts opened")
	s.cartsCanceled = s.counter(meter, "cart.canceled", "Carts closed after their last line item was removed")
	s.rejected = s.counter(meter, "cart.rejected", "Requests rejected by cart rules")

	return s
}

func (s *Service) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		s.log.Warn("metric instrument unavailable", slog.String("name", name), slog.Any("err", err))
		return noop.Int64Counter{}
	}
	return c
}

// Add puts p into the user's active cart, opening one when needed.
func (s *Service) Add(ctx context.Context, userID string, p Product) (err error) {
	ctx, span := s.startSpan(ctx, "cart.Add", userID, p)
	defer func() { s.endSpan(ctx, span, err) }()

	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("locker.Lock: %w", err)
	}
	defer unlock()

	var events []Event
	err = s.store.WithinTx(ctx, func(tx Store) error {
		events = events[:0]
		now := s.clock.Now()

		active, err := tx.FindActiveCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("store.FindActiveCart: %w", err)
		}

		if op, ok := s.agg.PlanCart(userID, active); ok {
			created, ev, err := s.openCart(ctx, tx, op, now)
			if err != nil {
				return err
			}
			active = &created
			events = append(events, ev...)
		}

		existing, err := tx.FindLineItem(ctx, active.ID, p.ProductID, p.UnitPrice)
		if err != nil {
			return fmt.Errorf("store.FindLineItem: %w", err)
		}

		ev, err := s.apply(ctx, tx, s.agg.PlanAdd(userID, active.ID, existing, p), now)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, userID, events)
	return nil
}

// Remove takes p.Quantity units of (p.ProductID, p.UnitPrice) out of the active cart.
// Removing the last line item cancels the cart.
func (s *Service) Remove(ctx context.Context, userID string, p Product) (err error) {
	ctx, span := s.startSpan(ctx, "cart.Remove", userID, p)
	defer func() { s.endSpan(ctx, span, err) }()

	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("locker.Lock: %w", err)
	}
	defer unlock()

	var events []Event
	err = s.store.WithinTx(ctx, func(tx Store) error {
		events = events[:0]
		now := s.clock.Now()

		active, err := tx.FindActiveCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("store.FindActiveCart: %w", err)
		}

		var existing *LineItem
		if active != nil {
			existing, err = tx.FindLineItem(ctx, active.ID, p.ProductID, p.UnitPrice)
			if err != nil {
				return fmt.Errorf("store.FindLineItem: %w", err)
			}
		}

		op, err := s.agg.PlanRemove(active, existing, p)
		if err != nil {
			return err
		}

		ev, err := s.apply(ctx, tx, op, now)
		if err != nil {
			return err
		}
		events = append(events, ev)

		if op.Kind != OpSoftDeleteLineItem {
			return nil
		}

		remaining, err := tx.ListLineItems(ctx, active.ID, userID)
		if err != nil {
			return fmt.Errorf("store.ListLineItems: %w", err)
		}

		if cancel, ok := s.agg.PlanCascade(*active, len(remaining)); ok {
			ev, err := s.apply(ctx, tx, cancel, now)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, userID, events)
	return nil
}

// View returns the aggregated summary of the user's active cart.
func (s *Service) View(ctx context.Context, userID string) (_ Summary, err error) {
	ctx, span := s.tracer.Start(ctx, "cart.View", trace.WithAttributes(attribute.String("cart.user_id", userID)))
	defer func() { s.endSpan(ctx, span, err) }()

	if err := ValidateUserID(userID); err != nil {
		return Summary{}, err
	}

	active, err := s.store.FindActiveCart(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("store.FindActiveCart: %w", err)
	}
	if active == nil {
		return Summary{}, ErrCartNotFound
	}

	items, err := s.store.ListLineItems(ctx, active.ID, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("store.ListLineItems: %w", err)
	}

	return s.agg.Summarize(*active, items), nil
}

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// openCart creates the active cart. Losing the creation race to a concurrent
// request is not an error: the winner's cart is used instead.
func (s *Service) openCart(ctx context.Context, tx Store, op Operation, now time.Time) (Cart, []Event, error) {
	created, err := tx.CreateCart(ctx, op.UserID, now)
	if err == nil {
		s.cartsCreated.Add(ctx, 1)
		return created, []Event{s.event(created.ID, EventCartCreated, CartCreated{
			CartID:    created.ID.String(),
			UserID:    created.UserID,
			CreatedAt: now,
		}, now)}, nil
	}
	if !errors.Is(err, ErrActiveCartExists) {
		return Cart{}, nil, fmt.Errorf("store.CreateCart: %w", err)
	}

	winner, err := tx.FindActiveCart(ctx, op.UserID)
	if err != nil {
		return Cart{}, nil, fmt.Errorf("store.FindActiveCart: %w", err)
	}
	if winner == nil {
		return Cart{}, nil, fmt.Errorf("store.CreateCart: %w", ErrActiveCartExists)
	}
	return *winner, nil, nil
}

func (s *Service) apply(ctx context.Context, tx Store, op Operation, now time.Time) (Event, error) {
	switch op.Kind {
	case OpCreateLineItem:
		item, err := tx.CreateLineItem(ctx, LineItem{
			CartID:    op.CartID,
			UserID:    op.UserID,
			ProductID: op.ProductID,
			UnitPrice: op.UnitPrice,
			Quantity:  op.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Event{}, fmt.Errorf("store.CreateLineItem: %w", err)
		}
		return s.event(op.CartID, EventLineItemAdded, LineItemAdded{
			CartID:     op.CartID.String(),
			LineItemID: item.ID.String(),
			UserID:     op.UserID,
			ProductID:  op.ProductID,
			UnitPrice:  op.UnitPrice,
			Quantity:   op.Quantity,
			AddedAt:    now,
		}, now), nil

	case OpUpdateLineItem:
		if err := tx.UpdateLineItemQuantity(ctx, op.LineItem.ID, op.LineItem.Version, op.Quantity, now); err != nil {
			return Event{}, fmt.Errorf("store.UpdateLineItemQuantity: %w", err)
		}
		return s.event(op.CartID, EventLineItemQuantityChanged, LineItemQuantityChanged{
			CartID:     op.CartID.String(),
			LineItemID: op.LineItem.ID.String(),
			UserID:     op.UserID,
			ProductID:  op.ProductID,
			UnitPrice:  op.UnitPrice,
			Delta:      op.Delta,
			Quantity:   op.Quantity,
			ChangedAt:  now,
		}, now), nil

	case OpSoftDeleteLineItem:
		if err := tx.SoftDeleteLineItem(ctx, op.LineItem.ID, op.LineItem.Version, now); err != nil {
			return Event{}, fmt.Errorf("store.SoftDeleteLineItem: %w", err)
		}
		return s.event(op.CartID, EventLineItemRemoved, LineItemRemoved{
			CartID:     op.CartID.String(),
			LineItemID: op.LineItem.ID.String(),
			UserID:     op.UserID,
			ProductID:  op.ProductID,
			UnitPrice:  op.UnitPrice,
			RemovedAt:  now,
		}, now), nil

	case OpCancelCart:
		if err := tx.CancelCart(ctx, op.CartID, now); err != nil {
			return Event{}, fmt.Errorf("store.CancelCart: %w", err)
		}
		s.cartsCanceled.Add(ctx, 1)
		return s.event(op.CartID, EventCartCanceled, CartCanceled{
			CartID:     op.CartID.String(),
			UserID:     op.UserID,
			CanceledAt: now,
		}, now), nil
	}

	return Event{}, fmt.Errorf("unsupported operation %q", op.Kind)
}

func (s *Service) event(cartID uuid.UUID, eventType string, data any, now time.Time) Event {
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   cartID.String(),
		AggregateType: AggregateType,
		EventType:     eventType,
		Data:          data,
		Timestamp:     now,
	}
}

// publish runs after the store committed, so a failure here is only logged.
func (s *Service) publish(ctx context.Context, userID string, events []Event) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, userID, ev); err != nil {
			s.log.ErrorContext(ctx, "publish event failed",
				slog.String("event_type", ev.EventType),
				slog.String("cart_id", ev.AggregateID),
				slog.Any("err", err))
		}
	}
}

func (s *Service) startSpan(ctx context.Context, name, userID string, p Product) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("cart.user_id", userID),
		attribute.String("cart.product_id", p.ProductID),
		attribute.String("cart.unit_price", p.UnitPrice.String()),
		attribute.Int("cart.quantity", p.Quantity),
	))
}

func (s *Service) endSpan(ctx context.Context, span trace.Span, err error) {
	defer span.End()

	switch {
	case err == nil:
	case IsRejection(err) || IsValidation(err):
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", err.Error())))
		span.SetAttributes(attribute.String("cart.rejection", err.Error()))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
