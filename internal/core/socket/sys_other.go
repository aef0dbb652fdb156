//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package socket

import "github.com/dep2p/go-natlink/pkg/types"

func classify(error, errClass) ErrorKind { return Fatal }

func sysDatagramSocket() (int, error)                      { return -1, ErrUnsupported }
func sysStreamSocket() (int, error)                        { return -1, ErrUnsupported }
func sysSetNonblock(int) error                             { return ErrUnsupported }
func sysSetBuffers(int, int) error                         { return ErrUnsupported }
func sysSetBroadcast(int) error                            { return ErrUnsupported }
func sysBind(int, uint16) error                            { return ErrUnsupported }
func sysListen(int, int) error                             { return ErrUnsupported }
func sysConnect(int, types.Endpoint) error                 { return ErrUnsupported }
func sysAccept(int) (int, types.Endpoint, error)           { return -1, types.Endpoint{}, ErrUnsupported }
func sysSendTo(int, []byte, types.Endpoint) (int, error)   { return 0, ErrUnsupported }
func sysRecvFrom(int, []byte) (int, types.Endpoint, error) { return 0, types.Endpoint{}, ErrUnsupported }
func sysRead(int, []byte) (int, error)                     { return 0, ErrUnsupported }
func sysWrite(int, []byte) (int, error)                    { return 0, ErrUnsupported }
func sysLocalEndpoint(int) (types.Endpoint, error)         { return types.Endpoint{}, ErrUnsupported }
func sysPeerEndpoint(int) (types.Endpoint, error)          { return types.Endpoint{}, ErrUnsupported }
func sysSocketError(int) error                             { return ErrUnsupported }
func sysClose(int) error                                   { return nil }
