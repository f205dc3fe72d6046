package repositories

import "fmt"

// StockErrorCode enumerates repository error causes for stock-coupled operations.
type StockErrorCode string

const (
	// StockErrorUnknown represents an unspecified failure.
	StockErrorUnknown StockErrorCode = "stock_unknown"
	// StockErrorInsufficient indicates requested quantity exceeds availability.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
	// StockErrorNotFound indicates the stock record does not exist.
	StockErrorNotFound StockErrorCode = "stock_not_found"
	// StockErrorUnpublished indicates the store product is not purchasable.
	StockErrorUnpublished StockErrorCode = "stock_unpublished"
	// StockErrorStaleStatus indicates the order changed state between the
	// caller's read and the stock-coupled write.
	StockErrorStaleStatus StockErrorCode = "stock_stale_status"
)

// StockError wraps stock-specific failures with machine readable codes and
// the quantities involved.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ItemID    string
	Available int
	Requested int
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, itemID string, message string, err error) *StockError {
	if message == "" {
		message = string(code)
	}
	return &StockError{
		Code:    code,
		ItemID:  itemID,
		Message: message,
		Err:     err,
	}
}
