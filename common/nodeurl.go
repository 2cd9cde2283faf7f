package common

import "fmt"

// IntToIP renders an IPv4 address stored as a big-endian uint32.
func IntToIP(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}

// NodeURL builds a node base URL from the protocol prefix and socket address.
func NodeURL(protocol string, ip uint32, port uint32) string {
	return fmt.Sprintf("%s%s:%d", protocol, IntToIP(ip), port)
}
