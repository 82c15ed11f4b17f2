package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDeviceList(t *testing.T) {
	assert.Nil(t, SplitDeviceList(""))
	assert.Nil(t, SplitDeviceList("   "))
	assert.Equal(t, []string{"A", "B", "C"}, SplitDeviceList(" A, B,,C ,"))
}

func TestJoinDeviceList(t *testing.T) {
	assert.Equal(t, "A,B", JoinDeviceList([]string{"A", "B"}))
	assert.Equal(t, []string{"A", "B"}, SplitDeviceList(JoinDeviceList([]string{"A", "B"})))
}

func TestExternalIDs(t *testing.T) {
	devices := []DeviceRecord{{ExternalID: "imei-1"}, {ExternalID: "imei-2"}}
	assert.Equal(t, []string{"imei-1", "imei-2"}, ExternalIDs(devices))
}
