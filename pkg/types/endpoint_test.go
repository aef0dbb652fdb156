package types

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint_RoundTrip(t *testing.T) {
	tests := []string{
		"127.0.0.1:9000",
		"10.1.2.3:1",
		"255.255.255.255:65535",
		"0.0.0.0:0",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			ep, err := ParseEndpoint(s)
			require.NoError(t, err)
			assert.Equal(t, s, ep.String())

			again, err := ParseEndpoint(ep.String())
			require.NoError(t, err)
			assert.Equal(t, ep, again)
		})
	}
}

func TestEndpoint_FromParts(t *testing.T) {
	ep := NewEndpoint([4]byte{192, 168, 1, 20}, 4242)
	assert.Equal(t, "192.168.1.20:4242", ep.String())
	assert.Equal(t, uint16(4242), ep.Port())
	assert.Equal(t, [4]byte{192, 168, 1, 20}, ep.IP())

	fromBytes, err := EndpointFromBytes([]byte{192, 168, 1, 20}, 4242)
	require.NoError(t, err)
	assert.Equal(t, ep, fromBytes)

	mapped, err := EndpointFromAddrPort(netip.MustParseAddrPort("[::ffff:192.168.1.20]:4242"))
	require.NoError(t, err)
	assert.Equal(t, ep, mapped)
}

func TestEndpoint_Invalid(t *testing.T) {
	for _, s := range []string{
		"", "1.2.3.4", "1.2.3.4:70000", "[::1]:80", "host",
		"1.2.3.4:080", "10.0.0.1:00001", "10.0.0.1:00", "[::ffff:1.2.3.4]:80",
	} {
		_, err := ParseEndpoint(s)
		assert.True(t, errors.Is(err, ErrInvalidEndpoint), "input %q", s)
	}

	_, err := EndpointFromBytes([]byte{1, 2, 3}, 80)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestEndpoint_Specified(t *testing.T) {
	assert.True(t, Endpoint{}.IsZero())
	assert.False(t, Endpoint{}.IsSpecified())
	assert.False(t, NewEndpoint([4]byte{10, 0, 0, 1}, 0).IsSpecified())
	assert.False(t, NewEndpoint([4]byte{}, 80).IsSpecified())
	assert.True(t, NewEndpoint([4]byte{10, 0, 0, 1}, 80).IsSpecified())
	assert.Equal(t, uint16(81), NewEndpoint([4]byte{10, 0, 0, 1}, 80).WithPort(81).Port())
}

func TestEndpoint_JSON(t *testing.T) {
	type holder struct {
		Host Endpoint `json:"host"`
	}

	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"host":"10.0.0.7:9000"}`), &h))
	assert.Equal(t, "10.0.0.7:9000", h.Host.String())

	b, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"10.0.0.7:9000"}`, string(b))
}

func TestParseTableFields(t *testing.T) {
	fields, err := ParseTableFields("id:direct, name:quoted,sdp")
	require.NoError(t, err)
	assert.Equal(t, []TableField{
		{Name: "id", Kind: FieldDirect},
		{Name: "name", Kind: FieldQuoted},
		{Name: "sdp", Kind: FieldQuoted},
	}, fields)

	_, err = ParseTableFields("id:blob")
	assert.Error(t, err)
}
