package executor

import (
	"context"
	"fmt"

	"github.com/chatwright/chatwright/model"
)

// Confirmation is the business backend's answer to a validated
// request: accepted with a reference, or rejected with a reason code.
type Confirmation struct {
	Accepted   bool   `json:"accepted"`
	Reference  string `json:"reference,omitempty"`
	ReasonCode string `json:"reasonCode,omitempty"`
}

// BusinessBackend is the narrow contract to the external commerce
// system. PlaceOrder must deduplicate on the idempotency key so a
// retried step never double-submits.
type BusinessBackend interface {
	PlaceOrder(ctx context.Context, idempotencyKey string, order map[string]any) (Confirmation, error)
	ValidateAddress(ctx context.Context, address map[string]any) (Confirmation, error)
}

// placeOrderExecutor submits an order. The idempotency key is derived
// from the run id and the current state name, so replaying a committed
// step yields the same downstream order.
type placeOrderExecutor struct {
	backend BusinessBackend
}

func NewPlaceOrderExecutor(backend BusinessBackend) *placeOrderExecutor {
	return &placeOrderExecutor{backend: backend}
}

func (e *placeOrderExecutor) Name() string { return "place-order" }

type placeOrderConfig struct {
	Order map[string]any `mapstructure:"order"`
	Key   string         `mapstructure:"key"`
}

func (e *placeOrderExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[placeOrderConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	idempotencyKey := fmt.Sprintf("%s:%s", inv.Run.RunId, inv.Run.CurrentState)
	confirmation, err := e.backend.PlaceOrder(ctx, idempotencyKey, conf.Order)
	if err != nil {
		return Result{Event: model.EVENT_ERROR}, err
	}
	if !confirmation.Accepted {
		return Result{
			Event:  "rejected",
			Writes: map[string]any{rejectKey(conf.Key): confirmation.ReasonCode},
		}, nil
	}
	res := Result{Event: model.EVENT_SUCCESS}
	if conf.Key != "" {
		res.Writes = map[string]any{conf.Key: confirmation.Reference}
	}
	return res, nil
}

// validateAddressExecutor checks a delivery address with the backend.
type validateAddressExecutor struct {
	backend BusinessBackend
}

func NewValidateAddressExecutor(backend BusinessBackend) *validateAddressExecutor {
	return &validateAddressExecutor{backend: backend}
}

func (e *validateAddressExecutor) Name() string { return "validate-address" }

type validateAddressConfig struct {
	Address map[string]any `mapstructure:"address"`
	Key     string         `mapstructure:"key"`
}

func (e *validateAddressExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[validateAddressConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	confirmation, err := e.backend.ValidateAddress(ctx, conf.Address)
	if err != nil {
		return Result{Event: model.EVENT_ERROR}, err
	}
	if !confirmation.Accepted {
		return Result{
			Event:  model.EVENT_INVALID,
			Writes: map[string]any{rejectKey(conf.Key): confirmation.ReasonCode},
		}, nil
	}
	res := Result{Event: model.EVENT_SUCCESS}
	if conf.Key != "" {
		res.Writes = map[string]any{conf.Key: conf.Address}
	}
	return res, nil
}

func rejectKey(key string) string {
	if key == "" {
		key = "request"
	}
	return key + ".reason"
}
