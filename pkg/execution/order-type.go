package execution

import (
	"bytes"
	"errors"
	"strconv"
)

type OrderType uint8

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStopMarket
	OrderTypeStopLimit

	orderTypeMarketStr     = "market"
	orderTypeLimitStr      = "limit"
	orderTypeStopMarketStr = "stopMarket"
	orderTypeStopLimitStr  = "stopLimit"
)

var (
	orderTypeMarketBytes     = []byte(`"market"`)
	orderTypeLimitBytes      = []byte(`"limit"`)
	orderTypeStopMarketBytes = []byte(`"stopMarket"`)
	orderTypeStopLimitBytes  = []byte(`"stopLimit"`)
)

func (ot OrderType) String() string {
	switch ot {
	case OrderTypeMarket:
		return orderTypeMarketStr
	case OrderTypeLimit:
		return orderTypeLimitStr
	case OrderTypeStopMarket:
		return orderTypeStopMarketStr
	case OrderTypeStopLimit:
		return orderTypeStopLimitStr
	}
	panic("invalid order type string conversion" + strconv.Itoa(int(ot)))
}

// RequiresPrice reports whether an order of this type must carry a limit price.
func (ot OrderType) RequiresPrice() bool {
	return ot == OrderTypeLimit || ot == OrderTypeStopLimit
}

func (ot OrderType) MarshalJSON() ([]byte, error) {
	switch ot {
	case OrderTypeMarket:
		return orderTypeMarketBytes, nil
	case OrderTypeLimit:
		return orderTypeLimitBytes, nil
	case OrderTypeStopMarket:
		return orderTypeStopMarketBytes, nil
	case OrderTypeStopLimit:
		return orderTypeStopLimitBytes, nil
	}
	return nil, errors.New("invalid order type json conversion: " + strconv.Itoa(int(ot)))
}

func (ot *OrderType) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, orderTypeMarketBytes) {
		*ot = OrderTypeMarket
		return nil
	}

	if bytes.Equal(data, orderTypeLimitBytes) {
		*ot = OrderTypeLimit
		return nil
	}

	if bytes.Equal(data, orderTypeStopMarketBytes) {
		*ot = OrderTypeStopMarket
		return nil
	}

	if bytes.Equal(data, orderTypeStopLimitBytes) {
		*ot = OrderTypeStopLimit
		return nil
	}

	return errors.New("unsupported order type: " + string(data))
}

func OrderTypeStrToType(value string) (OrderType, error) {
	switch value {
	case orderTypeMarketStr:
		return OrderTypeMarket, nil
	case orderTypeLimitStr:
		return OrderTypeLimit, nil
	case orderTypeStopMarketStr:
		return OrderTypeStopMarket, nil
	case orderTypeStopLimitStr:
		return OrderTypeStopLimit, nil
	}
	return 0, errors.New("unsupported order type: " + value)
}
