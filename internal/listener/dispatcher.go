package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/example/ec-shopping-cart/internal/command"
	"github.com/example/ec-shopping-cart/internal/domain/cart"
	"github.com/example/ec-shopping-cart/internal/query"
)

// Message patterns accepted on the commands topic
const (
	PatternAddProduct    = "add_product_in_shopping_cart"
	PatternRemoveProduct = "remove_product_in_shopping_cart"
	PatternViewCart      = "view_shopping_cart"
)

// Envelope is a command message. ID is set by callers that expect a reply.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
}

// Reply answers an Envelope that carried an ID
type Reply struct {
	ID       string `json:"id"`
	Pattern  string `json:"pattern"`
	Response any    `json:"response,omitempty"`
	Err      string `json:"err,omitempty"`
}

type Dispatcher struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	replies      cart.Publisher
	log          *slog.Logger
}

// NewDispatcher builds a Dispatcher. replies may be nil, in which case no reply is sent.
func NewDispatcher(cmdHandler *command.Handler, queryHandler *query.Handler, replies cart.Publisher, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		replies:      replies,
		log:          log.With("component", "listener"),
	}
}

// HandleMessage executes one command message. Only malformed envelopes and
// reply delivery failures are returned. Command failures are logged and,
// when the envelope has an ID, sent back as a Reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, key, value []byte) error {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	d.log.DebugContext(ctx, "received command", slog.String("pattern", env.Pattern), slog.String("id", env.ID))

	resp, err := d.dispatch(ctx, env)
	if err != nil {
		d.logOutcome(ctx, env, err)
	}

	if env.ID == "" || d.replies == nil {
		return nil
	}

	reply := Reply{ID: env.ID, Pattern: env.Pattern, Response: resp}
	if err != nil {
		reply.Response = nil
		reply.Err = errorText(err)
	}
	if err := d.replies.Publish(ctx, string(key), reply); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, env Envelope) (any, error) {
	switch env.Pattern {
	case PatternAddProduct:
		var cmd command.AddProductInCart
		if err := decodeData(env.Data, &cmd); err != nil {
			return nil, err
		}
		return d.cmdHandler.AddProductInCart(ctx, cmd)

	case PatternRemoveProduct:
		var cmd command.RemoveProductFromCart
		if err := decodeData(env.Data, &cmd); err != nil {
			return nil, err
		}
		return d.cmdHandler.RemoveProductFromCart(ctx, cmd)

	case PatternViewCart:
		var q query.ViewCart
		if err := decodeData(env.Data, &q); err != nil {
			return nil, err
		}
		return d.queryHandler.ViewCart(ctx, q)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, env.Pattern)
}

func (d *Dispatcher) logOutcome(ctx context.Context, env Envelope, err error) {
	attrs := []any{slog.String("pattern", env.Pattern), slog.String("id", env.ID), slog.Any("err", err)}
	switch {
	case isReportable(err):
		d.log.InfoContext(ctx, "command rejected", attrs...)
	case isInternal(err):
		d.log.ErrorContext(ctx, "command failed", attrs...)
	default:
		d.log.WarnContext(ctx, "command skipped", attrs...)
	}
}
