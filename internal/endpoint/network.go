package endpoint

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Protocol is the transport a Network DHName resolves to.
type Protocol int

const (
	// ProtoTCPClient connects out, the default for a stream DH.
	ProtoTCPClient Protocol = iota
	// ProtoTCPServer accepts one inbound connection then relays it,
	// selected with the ":tcp-s" suffix (§9 open question, resolved).
	ProtoTCPServer
	// ProtoUDP connects a UDP socket, the default for a datagram DH.
	ProtoUDP
)

// ParsedName is a DHName of the form host:port[:proto] broken into parts.
type ParsedName struct {
	Host     string
	Port     int
	Protocol Protocol
}

// ParseNetworkName parses "host:port", "host:port:tcp", "host:port:tcp-c",
// "host:port:tcp-s" or "host:port:udp". isStream supplies the default
// protocol when no suffix is present.
func ParseNetworkName(name string, isStream bool) (ParsedName, error) {
	parts := strings.Split(name, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ParsedName{}, fmt.Errorf("endpoint: malformed network name %q", name)
	}

	host := parts[0]

	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 || port > 65535 {
		return ParsedName{}, fmt.Errorf("endpoint: invalid port in %q", name)
	}

	proto := ProtoTCPClient
	if !isStream {
		proto = ProtoUDP
	}

	if len(parts) == 3 {
		switch parts[2] {
		case "tcp", "tcp-c":
			proto = ProtoTCPClient
		case "tcp-s":
			proto = ProtoTCPServer
		case "udp":
			proto = ProtoUDP
		default:
			return ParsedName{}, fmt.Errorf("endpoint: unknown protocol suffix %q", parts[2])
		}
	}

	return ParsedName{Host: host, Port: port, Protocol: proto}, nil
}

// DialNetwork opens the payload fd a ParsedName describes: a connecting
// TCP client, a listen-then-accept TCP server, or a connected UDP
// socket. The returned Endpoint's fd is always non-blocking.
func DialNetwork(p ParsedName) (Endpoint, error) {
	switch p.Protocol {
	case ProtoUDP:
		return dialUDP(p.Host, p.Port)
	case ProtoTCPServer:
		return acceptTCP(p.Port)
	case ProtoTCPClient:
		return dialTCP(p.Host, p.Port)
	default:
		return nil, fmt.Errorf("endpoint: unhandled protocol %d", p.Protocol)
	}
}

func sockaddrFor(host string, port int) (unix.Sockaddr, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return nil, err
	}

	return &unix.SockaddrInet4{Port: port, Addr: ip}, nil
}

func dialUDP(host string, port int) (Endpoint, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("endpoint: socket: %w", err)
	}

	sa, err := sockaddrFor(host, port)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("endpoint: connect udp %s:%d: %w", host, port, err)
	}

	base, err := newFdEndpoint(fd, false)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return base, nil
}

func dialTCP(host string, port int) (Endpoint, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("endpoint: socket: %w", err)
	}

	sa, err := sockaddrFor(host, port)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("endpoint: connect tcp %s:%d: %w", host, port, err)
	}

	base, err := newFdEndpoint(fd, true)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return base, nil
}

func acceptTCP(port int) (Endpoint, error) {
	listenFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("endpoint: socket: %w", err)
	}
	defer unix.Close(listenFd)

	if err := unix.SetsockoptInt(listenFd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, fmt.Errorf("endpoint: setsockopt: %w", err)
	}

	if err := unix.Bind(listenFd, &unix.SockaddrInet4{Port: port}); err != nil {
		return nil, fmt.Errorf("endpoint: bind tcp :%d: %w", port, err)
	}

	if err := unix.Listen(listenFd, 1); err != nil {
		return nil, fmt.Errorf("endpoint: listen tcp :%d: %w", port, err)
	}

	connFd, _, err := unix.Accept(listenFd)
	if err != nil {
		return nil, fmt.Errorf("endpoint: accept tcp :%d: %w", port, err)
	}

	base, err := newFdEndpoint(connFd, true)
	if err != nil {
		_ = unix.Close(connFd)
		return nil, err
	}

	return base, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	var out [4]byte

	if host == "" || host == "localhost" {
		out = [4]byte{127, 0, 0, 1}
		return out, nil
	}

	parts := strings.Split(host, ".")
	if len(parts) == 4 {
		ok := true

		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil || v < 0 || v > 255 {
				ok = false
				break
			}

			out[i] = byte(v)
		}

		if ok {
			return out, nil
		}
	}

	return out, fmt.Errorf("endpoint: cannot resolve host %q to an IPv4 literal", host)
}

// NewUDPSocket creates a non-blocking UDP socket bound to an ephemeral
// port and connected to (host, port) — used for the DH's OC-facing
// socket (§4.D step 1), which is always UDP regardless of the payload
// side's protocol.
func NewUDPSocket(host string, port int) (Endpoint, error) {
	return dialUDP(host, port)
}
