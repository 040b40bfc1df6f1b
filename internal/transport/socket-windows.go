//go:build windows

package transport

import (
	"syscall"
)

const socketBufferSize = 1024 * 1024

func setSocketOptions(fd uintptr) {
	if err := syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, socketBufferSize); err != nil {
		return
	}
	syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, socketBufferSize)
}
