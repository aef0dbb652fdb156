package nat

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

const (
	attrUfrag           = "ice-ufrag"
	attrPwd             = "ice-pwd"
	attrCandidate       = "candidate"
	attrEndOfCandidates = "end-of-candidates"

	// mediaFormat 数据通道的格式名
	mediaFormat = "natlink"
)

// Description 会话描述：ICE 凭据和候选
//
// 以 SDP 文本传递，带一个 application 媒体段。
type Description struct {
	SessionID  uint64
	Ufrag      string
	Pwd        string
	Candidates []string
}

// Marshal 生成 SDP 文本
func (d Description) Marshal() (string, error) {
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "application",
			Port:    sdp.RangedPort{Value: 9},
			Protos:  []string{"UDP"},
			Formats: []string{mediaFormat},
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
	}
	md = md.WithICECredentials(d.Ufrag, d.Pwd)
	for _, c := range d.Candidates {
		md = md.WithCandidate(c)
	}
	md = md.WithPropertyAttribute(attrEndOfCandidates)

	sd := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      d.SessionID,
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName:       "-",
		TimeDescriptions:  []sdp.TimeDescription{{Timing: sdp.Timing{}}},
		MediaDescriptions: []*sdp.MediaDescription{md},
	}
	b, err := sd.Marshal()
	if err != nil {
		return "", fmt.Errorf("nat: marshal description: %w", err)
	}
	return string(b), nil
}

// ParseDescription 解析 SDP 文本
//
// 取第一个带 ice-ufrag 的媒体段；媒体段没有凭据时使用会话级属性。
func ParseDescription(text string) (Description, error) {
	var sd sdp.SessionDescription
	if err := sd.UnmarshalString(text); err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}

	d := Description{SessionID: sd.Origin.SessionID}
	for _, md := range sd.MediaDescriptions {
		ufrag, ok := md.Attribute(attrUfrag)
		if !ok {
			continue
		}
		d.Ufrag = ufrag
		d.Pwd, _ = md.Attribute(attrPwd)
		for _, a := range md.Attributes {
			if a.Key == attrCandidate && a.Value != "" {
				d.Candidates = append(d.Candidates, a.Value)
			}
		}
		break
	}
	if d.Ufrag == "" {
		d.Ufrag, _ = sd.Attribute(attrUfrag)
		d.Pwd, _ = sd.Attribute(attrPwd)
	}
	if d.Ufrag == "" || d.Pwd == "" {
		return Description{}, ErrMissingCredentials
	}
	return d, nil
}

// EncodeBase64 返回描述的标准 base64 形式
func EncodeBase64(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// DecodeBase64 解码 base64 形式的描述，忽略首尾空白
func DecodeBase64(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrInvalidDescription, err)
	}
	return string(b), nil
}
