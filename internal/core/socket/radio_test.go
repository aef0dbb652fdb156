package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBDAddr(t *testing.T) {
	addr, err := ParseBDAddr("00:1a:7D:DA:71:13")
	require.NoError(t, err)
	assert.Equal(t, BDAddr{0x00, 0x1A, 0x7D, 0xDA, 0x71, 0x13}, addr)
	assert.Equal(t, "00:1A:7D:DA:71:13", addr.String())
	assert.Equal(t, [6]byte{0x13, 0x71, 0xDA, 0x7D, 0x1A, 0x00}, addr.reversed())

	for _, bad := range []string{"", "00:1A:7D:DA:71", "00:1A:7D:DA:71:1", "zz:1A:7D:DA:71:13", "001A7DDA7113"} {
		_, err := ParseBDAddr(bad)
		assert.ErrorIs(t, err, ErrInvalidBDAddr, "input %q", bad)
	}
}

func TestDefaultServiceRecord(t *testing.T) {
	rec := DefaultServiceRecord()
	assert.Equal(t, DefaultServiceUUID, rec.UUID)
	assert.Zero(t, rec.Channel)
}
