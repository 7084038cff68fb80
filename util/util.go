package util

import (
	"net"
	"strconv"
	"strings"
)

// ParseAddr splits host:port, tolerating a missing port.
func ParseAddr(addr string) (ip string, port uint16) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]"), 0
	}
	uport, _ := strconv.ParseUint(p, 10, 16)
	return host, uint16(uport)
}
