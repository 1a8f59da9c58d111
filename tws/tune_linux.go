package tws

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func tuneTCP(conn net.Conn, config Config) error {
	if config.TCPTimeout == 0 {
		return nil
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		// UNIX sockets and TLS-wrapped connections are left alone
		return nil
	}
	if err := setTCPOption(tcp, unix.TCP_USER_TIMEOUT, int(config.TCPTimeout/time.Millisecond)); err != nil {
		return fmt.Errorf("failed to tune TCP socket: %w", err)
	}
	return nil
}

func setTCPOption(conn *net.TCPConn, option, value int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("failed to set TCP socket option %d: %w", option, err)
	}

	var setErr error
	err = raw.Control(func(fd uintptr) {
		setErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, option, value)
	})
	if err == nil {
		err = setErr
	}
	if err != nil {
		return fmt.Errorf("failed to set TCP socket option %d: %w", option, err)
	}
	return nil
}
