package nat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hostCand  = "1234567 1 udp 2130706431 192.168.1.10 50000 typ host"
	srflxCand = "7654321 1 udp 1694498815 203.0.113.7 61000 typ srflx raddr 192.168.1.10 rport 50000"
)

// TestDescription_RoundTrip 测试描述编码与解析
func TestDescription_RoundTrip(t *testing.T) {
	d := Description{
		SessionID:  42,
		Ufrag:      "abcd",
		Pwd:        "0123456789abcdefghijkl",
		Candidates: []string{hostCand, srflxCand},
	}
	text, err := d.Marshal()
	require.NoError(t, err)

	assert.Contains(t, text, "m=application 9 UDP natlink")
	assert.Contains(t, text, "a=ice-ufrag:abcd")
	assert.Contains(t, text, "a=candidate:"+hostCand)
	assert.Contains(t, text, "a=end-of-candidates")

	got, err := ParseDescription(text)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

// TestDescription_NoCandidates 测试没有候选的描述
func TestDescription_NoCandidates(t *testing.T) {
	text, err := Description{Ufrag: "u", Pwd: "p"}.Marshal()
	require.NoError(t, err)

	got, err := ParseDescription(text)
	require.NoError(t, err)
	assert.Empty(t, got.Candidates)
}

// TestParseDescription_SessionLevelCredentials 测试会话级凭据
func TestParseDescription_SessionLevelCredentials(t *testing.T) {
	text := strings.Join([]string{
		"v=0",
		"o=- 1 1 IN IP4 0.0.0.0",
		"s=-",
		"t=0 0",
		"a=ice-ufrag:sess",
		"a=ice-pwd:sesspwd",
		"",
	}, "\r\n")

	got, err := ParseDescription(text)
	require.NoError(t, err)
	assert.Equal(t, "sess", got.Ufrag)
	assert.Equal(t, "sesspwd", got.Pwd)
}

// TestParseDescription_Errors 测试无法解析的描述
func TestParseDescription_Errors(t *testing.T) {
	_, err := ParseDescription("not an sdp")
	assert.ErrorIs(t, err, ErrInvalidDescription)

	text := "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"
	_, err = ParseDescription(text)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

// TestBase64 测试 base64 形式
func TestBase64(t *testing.T) {
	enc := EncodeBase64("v=0\r\n")
	got, err := DecodeBase64("  " + enc + "\n")
	require.NoError(t, err)
	assert.Equal(t, "v=0\r\n", got)

	_, err = DecodeBase64("%%%")
	assert.ErrorIs(t, err, ErrInvalidDescription)
}

// TestConfig 测试配置
func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "stun:stun.l.google.com:19302", cfg.STUNURI())

	cfg.STUNHost = ""
	assert.Empty(t, cfg.STUNURI())

	bad := DefaultConfig()
	bad.ConnectTimeout = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.PortMin, bad.PortMax = 2000, 1000
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}
