package main

import "github.com/dep2p/go-natlink/internal/core/socket"

func newAdvertiser() (socket.ServiceAdvertiser, func(), error) {
	adv, err := socket.NewBlueZAdvertiser()
	if err != nil {
		return nil, nil, err
	}
	return adv, func() {
		if err := adv.Close(); err != nil {
			log.Debug("关闭 BlueZ 连接失败", "error", err)
		}
	}, nil
}
