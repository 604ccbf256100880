package receiver

import (
	"testing"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope_GatewayRegistration(t *testing.T) {
	env, err := ParseEnvelope("1;192.168.1.10;")
	require.NoError(t, err)
	require.NotNil(t, env.Gateway)
	assert.Equal(t, ReportGatewayRegistration, env.Gateway.Kind)
	assert.Equal(t, "192.168.1.10", env.Gateway.IP)
}

func TestParseEnvelope_GatewayHealth(t *testing.T) {
	env, err := ParseEnvelope("2;192.168.1.10;1;")
	require.NoError(t, err)
	require.NotNil(t, env.Gateway)
	assert.Equal(t, ReportGatewayHealth, env.Gateway.Kind)
	assert.Equal(t, 1, env.Gateway.Health)
}

func TestParseEnvelope_BeaconRegistration(t *testing.T) {
	uuid := "0000000000010000123400000000567800000000"
	env, err := ParseEnvelope("3;" + uuid + ";10.0.0.5;192.168.1.10;")
	require.NoError(t, err)
	require.NotNil(t, env.Beacon)
	assert.Equal(t, uuid, env.Beacon.UUID)
	assert.Equal(t, "10.0.0.5", env.Beacon.IP)
	assert.Equal(t, "192.168.1.10", env.Beacon.GatewayIP)
}

func TestParseEnvelope_Tracking_SingleBlock(t *testing.T) {
	payload := "5;uuid-1;192.168.1.10;1;2;" +
		"AA:BB:CC:DD:EE:FF;1000;1005;-60;0;3200;" +
		"11:22:33:44:55:66;1001;1006;-70;1;3100;"
	env, err := ParseEnvelope(payload)
	require.NoError(t, err)
	require.NotNil(t, env.Tracking)
	assert.Equal(t, "uuid-1", env.Tracking.BeaconUUID)
	assert.Equal(t, "192.168.1.10", env.Tracking.GatewayIP)
	require.Len(t, env.Tracking.Records, 2)

	r0 := env.Tracking.Records[0]
	assert.Equal(t, "aabbccddeeff", r0.MAC)
	assert.Equal(t, -60, r0.RSSI)
	assert.False(t, r0.Panic)
	assert.Equal(t, 3200, r0.BatteryMV)

	r1 := env.Tracking.Records[1]
	assert.Equal(t, "112233445566", r1.MAC)
	assert.True(t, r1.Panic)
}

func TestParseEnvelope_Tracking_MultipleObjectTypeBlocksConcatenated(t *testing.T) {
	payload := "5;uuid-1;192.168.1.10;0;1;" +
		"AA:BB:CC:DD:EE:FF;1000;1005;-60;0;3200;" +
		"uuid-1;192.168.1.10;1;1;" +
		"11:22:33:44:55:66;1001;1006;-70;0;3100;"
	env, err := ParseEnvelope(payload)
	require.NoError(t, err)
	require.Len(t, env.Tracking.Records, 2)
}

func TestParseEnvelope_MalformedKind_ReturnsAPIProtocolError(t *testing.T) {
	_, err := ParseEnvelope("not-a-number;foo;")
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.ErrAPIProtocol))
}

func TestParseEnvelope_UnknownKind_ReturnsAPIProtocolError(t *testing.T) {
	_, err := ParseEnvelope("99;foo;")
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.ErrAPIProtocol))
}

func TestParseEnvelope_TrackingTruncatedRecord_ReturnsAPIProtocolError(t *testing.T) {
	_, err := ParseEnvelope("5;uuid-1;192.168.1.10;1;1;AA:BB:CC:DD:EE:FF;1000;")
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.ErrAPIProtocol))
}

func TestParseEnvelope_EmptyPayload_ReturnsAPIProtocolError(t *testing.T) {
	_, err := ParseEnvelope("")
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.ErrAPIProtocol))
}
