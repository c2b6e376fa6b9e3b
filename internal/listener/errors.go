package listener

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

var (
	ErrUnknownPattern = errors.New("unknown message pattern")
	ErrInvalidData    = errors.New("invalid message data")
)

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return ErrInvalidData
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

// isReportable reports whether err is caused by the request and can be shown to the caller
func isReportable(err error) bool {
	return cart.IsRejection(err) || cart.IsValidation(err) || errors.Is(err, ErrInvalidData)
}

// isInternal reports whether err is an infrastructure failure
func isInternal(err error) bool {
	return err != nil && !isReportable(err) && !errors.Is(err, ErrUnknownPattern)
}

func errorText(err error) string {
	if isInternal(err) {
		return "internal error"
	}
	return err.Error()
}
