//go:build linux || darwin

package transport

import (
	"syscall"
)

const socketBufferSize = 1024 * 1024

// setSocketOptions enlarges kernel buffers for high-thread mode dials.
func setSocketOptions(fd uintptr) {
	if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, socketBufferSize); err != nil {
		return
	}
	syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, socketBufferSize)
}
