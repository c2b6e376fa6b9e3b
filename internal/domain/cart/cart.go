package cart

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "ShoppingCart"

// Status is the lifecycle state of a Cart.
type Status string

// remember to add new statuses to the validStatuses map
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCanceled   Status = "CANCELED"
)

var validStatuses = map[Status]struct{}{
	StatusInProgress: {},
	StatusCanceled:   {},
}

func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid cart status")
}

// Validation errors, raised before a request reaches the Aggregator.
var (
	ErrInvalidUserID   = errors.New("user_id is required")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must not be negative")
)

// Business rejections. They are user visible and never retried.
var (
	ErrNoActiveCart     = errors.New("no active cart for user")
	ErrCartNotFound     = errors.New("no cart for user")
	ErrProductNotInCart = errors.New("product not in cart")
	ErrQuantityExceeded = errors.New("requested removal quantity exceeds held quantity")
)

var rejections = []error{ErrNoActiveCart, ErrCartNotFound, ErrProductNotInCart, ErrQuantityExceeded}

// IsRejection reports whether err is a business rejection rather than an internal failure.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err was caused by malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidProduct) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice)
}

// Cart is one shopping session of one user.
// At most one Cart per user is IN_PROGRESS with a nil DeletedAt.
type Cart struct {
	ID        uuid.UUID
	UserID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsActive reports whether the cart can be matched by Add, Remove and View.
func (c Cart) IsActive() bool {
	return c.Status == StatusInProgress && c.DeletedAt == nil
}

// LineItem is one (product, unit price) entry of a Cart.
type LineItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	UserID    string
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
	// Version is bumped on every quantity change and guards concurrent updates.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Matches reports whether the line item is keyed by productID and unitPrice.
func (li LineItem) Matches(productID string, unitPrice decimal.Decimal) bool {
	return li.ProductID == productID && li.UnitPrice.Equal(unitPrice)
}

// MaxPriceScale is the number of decimal places a unit price may carry.
// It matches the unit_price column so stored prices compare equal to the requested ones.
const MaxPriceScale = 4

// Product is the mutation payload shared by Add and Remove.
type Product struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Validate checks the request shape. The Aggregator assumes it has passed.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ProductID) == "" {
		return ErrInvalidProduct
	}
	if p.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if !p.UnitPrice.Equal(p.UnitPrice.Truncate(MaxPriceScale)) {
		return ErrInvalidPrice
	}
	return nil
}

// ValidateUserID rejects empty and blank user ids.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return nil
}

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
