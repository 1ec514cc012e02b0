package execution

import (
	"bytes"
	"errors"
	"strconv"
)

type OrderTimeInForce uint8

const (
	OrderTimeInForceGTC OrderTimeInForce = iota // good till cancel. cancel only by user request or full fill
	OrderTimeInForceIOC                         // immediate or cancel. can be partially filled and then final status expired
	OrderTimeInForceFOK                         // fill or kill. fully filled or expired
	OrderTimeInForceDAY                         // Day. automatically expired at the end of the session

	orderTimeInForceGTCstr = "GTC"
	orderTimeInForceIOCstr = "IOC"
	orderTimeInForceFOKstr = "FOK"
	orderTimeInForceDAYstr = "Day"
)

var (
	orderTimeInForceGTCbytes = []byte(`"GTC"`)
	orderTimeInForceIOCbytes = []byte(`"IOC"`)
	orderTimeInForceFOKbytes = []byte(`"FOK"`)
	orderTimeInForceDAYbytes = []byte(`"Day"`)
)

func (tif OrderTimeInForce) String() string {
	switch tif {
	case OrderTimeInForceGTC:
		return orderTimeInForceGTCstr
	case OrderTimeInForceIOC:
		return orderTimeInForceIOCstr
	case OrderTimeInForceFOK:
		return orderTimeInForceFOKstr
	case OrderTimeInForceDAY:
		return orderTimeInForceDAYstr
	}
	panic("invalid order timeInForce string conversion" + strconv.Itoa(int(tif)))
}

func (tif OrderTimeInForce) MarshalJSON() ([]byte, error) {
	switch tif {
	case OrderTimeInForceGTC:
		return orderTimeInForceGTCbytes, nil
	case OrderTimeInForceIOC:
		return orderTimeInForceIOCbytes, nil
	case OrderTimeInForceFOK:
		return orderTimeInForceFOKbytes, nil
	case OrderTimeInForceDAY:
		return orderTimeInForceDAYbytes, nil
	}
	return nil, errors.New("invalid order timeInForce json conversion: " + strconv.Itoa(int(tif)))
}

func (tif *OrderTimeInForce) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, orderTimeInForceGTCbytes) {
		*tif = OrderTimeInForceGTC
		return nil
	}

	if bytes.Equal(data, orderTimeInForceIOCbytes) {
		*tif = OrderTimeInForceIOC
		return nil
	}

	if bytes.Equal(data, orderTimeInForceFOKbytes) {
		*tif = OrderTimeInForceFOK
		return nil
	}

	if bytes.Equal(data, orderTimeInForceDAYbytes) {
		*tif = OrderTimeInForceDAY
		return nil
	}

	return errors.New("unsupported order timeInForce: " + string(data))
}

func OrderTimeInForceStrToType(value string) (OrderTimeInForce, error) {
	switch value {
	case orderTimeInForceGTCstr:
		return OrderTimeInForceGTC, nil
	case orderTimeInForceIOCstr:
		return OrderTimeInForceIOC, nil
	case orderTimeInForceFOKstr:
		return OrderTimeInForceFOK, nil
	case orderTimeInForceDAYstr:
		return OrderTimeInForceDAY, nil
	}
	return 0, errors.New("unsupported order timeInForce: " + value)
}
