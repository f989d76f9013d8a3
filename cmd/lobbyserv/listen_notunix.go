//go:build !aix && !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd && !solaris

package main

import (
	"net"
)

func listenConfig() *net.ListenConfig {
	return &net.ListenConfig{}
}
