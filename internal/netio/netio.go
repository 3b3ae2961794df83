// Package netio implements the UDP socket adapter the Art-Net
// handlers are built on: interface enumeration, broadcast-address
// derivation, and the bind-with-fallback behaviour spec'd for
// Art-Net Timecode I/O.
package netio

import (
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	artNetPort  = 6454
	readTimeout = 100 * time.Millisecond
)

// Interface describes one usable network interface for the device
// selector: name, IP, directed broadcast address, and subnet mask.
type Interface struct {
	Name      string
	IP        string
	Broadcast string
	Subnet    string
}

// Interfaces lists every up, non-loopback IPv4 interface.
func Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerate interfaces: %w", err)
	}

	var out []Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || ipnet.Mask == nil || len(ipnet.Mask) != 4 {
				continue
			}
			out = append(out, Interface{
				Name:      iface.Name,
				IP:        ip.String(),
				Broadcast: directedBroadcast(ip, ipnet.Mask).String(),
				Subnet:    net.IP(ipnet.Mask).String(),
			})
		}
	}
	return out, nil
}

func directedBroadcast(ip net.IP, mask net.IPMask) net.IP {
	bcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		bcast[i] = ip[i] | ^mask[i]
	}
	return bcast
}

// Listener is a UDP receive socket bound to port 6454.
type Listener struct {
	conn    *net.UDPConn
	running atomic.Bool

	// FellBack is true if binding to the requested interface IP failed
	// and the listener fell back to the wildcard address.
	FellBack bool
}

// Listen binds to ip:6454, retrying on 0.0.0.0 if the specific IP
// refuses.
func Listen(ip string) (*Listener, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(ip), Port: artNetPort})
	fellBack := false
	if err != nil {
		fellBack = true
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: artNetPort})
		if err != nil {
			return nil, fmt.Errorf("bind art-net listener: %w", err)
		}
	}
	l := &Listener{conn: conn, FellBack: fellBack}
	l.running.Store(true)
	return l, nil
}

// Run reads packets until Close, handing each to accept. The read
// loop uses a 100ms timeout so it can exit promptly on shutdown.
func (l *Listener) Run(accept func([]byte)) {
	buf := make([]byte, 512)
	for l.running.Load() {
		l.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		accept(buf[:n])
	}
}

// Close stops Run and releases the socket.
func (l *Listener) Close() error {
	l.running.Store(false)
	return l.conn.Close()
}

// Sender is a UDP broadcast socket for Art-Net transmission.
type Sender struct {
	conn *net.UDPConn
	dest *net.UDPAddr
}

// OpenSender opens a broadcast-enabled sender bound to ifaceIP (or
// 0.0.0.0 on an ephemeral port when ifaceIP is empty), broadcasting
// to that interface's directed broadcast address (or
// 255.255.255.255 when no interface is selected).
func OpenSender(ifaceIP string) (*Sender, error) {
	local := &net.UDPAddr{IP: net.ParseIP(ifaceIP), Port: 0}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		if err != nil {
			return nil, fmt.Errorf("open art-net sender: %w", err)
		}
	}
	if err := enableBroadcast(conn); err != nil {
		return nil, fmt.Errorf("enable broadcast: %w", err)
	}

	dest := broadcastAddressFor(ifaceIP)
	return &Sender{conn: conn, dest: &net.UDPAddr{IP: dest, Port: artNetPort}}, nil
}

func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

func broadcastAddressFor(ifaceIP string) net.IP {
	if ifaceIP == "" {
		return net.IPv4bcast
	}
	ifaces, err := Interfaces()
	if err != nil {
		return net.IPv4bcast
	}
	for _, iface := range ifaces {
		if iface.IP == ifaceIP {
			if ip := net.ParseIP(iface.Broadcast); ip != nil {
				return ip
			}
		}
	}
	return net.IPv4bcast
}

// Send transmits pkt to the broadcast destination.
func (s *Sender) Send(pkt []byte) error {
	_, err := s.conn.WriteToUDP(pkt, s.dest)
	return err
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
