package execution_test

import (
	"encoding/json"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"gitlab.heather.loc/helios/execgate/pkg/execution"
	"gotest.tools/assert"
)

type testOrderDataTif struct {
	TimeInForce execution.OrderTimeInForce `json:"timeInForce"`
}

func TestOrderTimeInForce_MarshalJSON(t *testing.T) {
	for expect, tif := range map[string]execution.OrderTimeInForce{
		`{"timeInForce":"GTC"}`: execution.OrderTimeInForceGTC,
		`{"timeInForce":"IOC"}`: execution.OrderTimeInForceIOC,
		`{"timeInForce":"FOK"}`: execution.OrderTimeInForceFOK,
		`{"timeInForce":"Day"}`: execution.OrderTimeInForceDAY,
	} {
		val, err := json.Marshal(&testOrderDataTif{tif})
		assert.NilError(t, err)
		assert.Equal(t, string(val), expect, "std json "+tif.String())

		val, err = jsoniter.Marshal(&testOrderDataTif{tif})
		assert.NilError(t, err)
		assert.Equal(t, string(val), expect, "jsoniter json "+tif.String())
	}

	_, err := json.Marshal(&testOrderDataTif{execution.OrderTimeInForce(7)})
	assert.ErrorContains(t, err, `invalid order timeInForce json conversion: 7`)
}

func TestOrderTimeInForce_UnmarshalJSON(t *testing.T) {
	var obj testOrderDataTif

	err := json.Unmarshal([]byte(`{"timeInForce":"Day"}`), &obj)
	assert.NilError(t, err)
	assert.Equal(t, obj.TimeInForce, execution.OrderTimeInForceDAY)

	err = jsoniter.Unmarshal([]byte(`{"timeInForce":"IOC"}`), &obj)
	assert.NilError(t, err)
	assert.Equal(t, obj.TimeInForce, execution.OrderTimeInForceIOC)

	err = json.Unmarshal([]byte(`{"timeInForce":"GTD"}`), &obj)
	assert.Error(t, err, `unsupported order timeInForce: "GTD"`)
}

func TestOrderTimeInForce_StrToType(t *testing.T) {
	resolve, err := execution.OrderTimeInForceStrToType("FOK")
	assert.NilError(t, err)
	assert.Equal(t, resolve, execution.OrderTimeInForceFOK)

	_, err = execution.OrderTimeInForceStrToType("GTD")
	assert.Error(t, err, `unsupported order timeInForce: GTD`)
}
