package http2

import (
	"crypto/tls"
	"errors"
	"net"

	"github.com/valyala/fasthttp"
)

// Server adapts a *fasthttp.Server to serve HTTP/2 connections, either
// negotiated via ALPN over TLS or handed a raw net.Conn directly by the
// caller (h2c, or a listener the caller already accepted).
type Server struct {
	s   *fasthttp.Server
	cnf ServerConfig
}

// ConfigureServer registers h2 as an ALPN protocol on ss, so a TLS
// listener using ss will negotiate HTTP/2 and route those connections
// through this engine instead of fasthttp's HTTP/1.1 path.
func ConfigureServer(ss *fasthttp.Server, conf ServerConfig) *Server {
	s := &Server{s: ss, cnf: conf}
	ss.NextProto(H2TLSProto, func(c net.Conn) error {
		return s.ServeConn(c)
	})
	return s
}

// ServeConn runs the HTTP/2 engine over an already-accepted connection
// until the peer disconnects or the connection is shut down. The caller
// owns c and remains responsible for closing it if ServeConn returns
// before doing so itself.
func (s *Server) ServeConn(c net.Conn) error {
	if s.cnf.MaxRequestTime == 0 {
		s.cnf.MaxRequestTime = s.s.ReadTimeout
	}
	s.cnf.defaults()
	return NewConnection(c, s.s.Handler, &s.cnf).Serve()
}

// ListenAndServeTLS advertises h2 and http/1.1 via ALPN on the supplied
// certificate pair and serves HTTP/2 off that listener. Serve closes any
// connection that negotiates something other than h2, so HTTP/1.1 clients
// are not served.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{H2TLSProto, "http/1.1"},
	}
	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections off ln, negotiating ALPN on TLS listeners
// and otherwise assuming every accepted connection speaks h2c directly.
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		if tlsConn, ok := c.(*tls.Conn); ok {
			if err := tlsConn.Handshake(); err != nil {
				_ = c.Close()
				continue
			}
			if tlsConn.ConnectionState().NegotiatedProtocol != H2TLSProto {
				_ = c.Close()
				continue
			}
		}
		go func(c net.Conn) {
			if err := s.ServeConn(c); err != nil && s.cnf.Debug {
				s.cnf.Logger.Printf("%s: %s\n", c.RemoteAddr(), err)
			}
		}(c)
	}
}

var errBadUpgrade = errors.New("http2: h2c upgrade request missing HTTP2-Settings")
