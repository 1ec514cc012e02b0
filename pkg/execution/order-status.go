package execution

import (
	"bytes"
	"errors"
	"strconv"
)

type OrderStatus uint8

const (
	OrderStatusPendingNew OrderStatus = iota
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
	OrderStatusExpired

	orderStatusPendingNewStr      = "pendingNew"
	orderStatusAcceptedStr        = "accepted"
	orderStatusPartiallyFilledStr = "partiallyFilled"
	orderStatusFilledStr          = "filled"
	orderStatusCanceledStr        = "canceled"
	orderStatusRejectedStr        = "rejected"
	orderStatusExpiredStr         = "expired"
)

var (
	orderStatusPendingNewBytes      = []byte(`"pendingNew"`)
	orderStatusAcceptedBytes        = []byte(`"accepted"`)
	orderStatusPartiallyFilledBytes = []byte(`"partiallyFilled"`)
	orderStatusFilledBytes          = []byte(`"filled"`)
	orderStatusCanceledBytes        = []byte(`"canceled"`)
	orderStatusRejectedBytes        = []byte(`"rejected"`)
	orderStatusExpiredBytes         = []byte(`"expired"`)
)

// IsTerminal reports whether the status is a sink: no further event may
// mutate an order once it is reached.
func (os OrderStatus) IsTerminal() bool {
	switch os {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

func (os OrderStatus) String() string {
	switch os {
	case OrderStatusPendingNew:
		return orderStatusPendingNewStr
	case OrderStatusAccepted:
		return orderStatusAcceptedStr
	case OrderStatusPartiallyFilled:
		return orderStatusPartiallyFilledStr
	case OrderStatusFilled:
		return orderStatusFilledStr
	case OrderStatusCanceled:
		return orderStatusCanceledStr
	case OrderStatusRejected:
		return orderStatusRejectedStr
	case OrderStatusExpired:
		return orderStatusExpiredStr
	}
	panic("invalid order status string conversion" + strconv.Itoa(int(os)))
}

func (os OrderStatus) MarshalJSON() ([]byte, error) {
	switch os {
	case OrderStatusPendingNew:
		return orderStatusPendingNewBytes, nil
	case OrderStatusAccepted:
		return orderStatusAcceptedBytes, nil
	case OrderStatusPartiallyFilled:
		return orderStatusPartiallyFilledBytes, nil
	case OrderStatusFilled:
		return orderStatusFilledBytes, nil
	case OrderStatusCanceled:
		return orderStatusCanceledBytes, nil
	case OrderStatusRejected:
		return orderStatusRejectedBytes, nil
	case OrderStatusExpired:
		return orderStatusExpiredBytes, nil
	}
	return nil, errors.New("invalid order status json conversion: " + strconv.Itoa(int(os)))
}

func (os *OrderStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, orderStatusPendingNewBytes) {
		*os = OrderStatusPendingNew
		return nil
	}
	if bytes.Equal(data, orderStatusAcceptedBytes) {
		*os = OrderStatusAccepted
		return nil
	}
	if bytes.Equal(data, orderStatusPartiallyFilledBytes) {
		*os = OrderStatusPartiallyFilled
		return nil
	}
	if bytes.Equal(data, orderStatusFilledBytes) {
		*os = OrderStatusFilled
		return nil
	}
	if bytes.Equal(data, orderStatusCanceledBytes) {
		*os = OrderStatusCanceled
		return nil
	}
	if bytes.Equal(data, orderStatusRejectedBytes) {
		*os = OrderStatusRejected
		return nil
	}
	if bytes.Equal(data, orderStatusExpiredBytes) {
		*os = OrderStatusExpired
		return nil
	}

	return errors.New("unsupported order status: " + string(data))
}

func OrderStatusStrToType(value string) (OrderStatus, error) {
	switch value {
	case orderStatusPendingNewStr:
		return OrderStatusPendingNew, nil
	case orderStatusAcceptedStr:
		return OrderStatusAccepted, nil
	case orderStatusPartiallyFilledStr:
		return OrderStatusPartiallyFilled, nil
	case orderStatusFilledStr:
		return OrderStatusFilled, nil
	case orderStatusCanceledStr:
		return OrderStatusCanceled, nil
	case orderStatusRejectedStr:
		return OrderStatusRejected, nil
	case orderStatusExpiredStr:
		return OrderStatusExpired, nil
	}
	return 0, errors.New("unsupported order status: " + value)
}
