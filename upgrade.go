package http2

import (
	"encoding/base64"
	"net"

	"github.com/valyala/fasthttp"
)

// UpgradeSettings decodes the base64url payload of an HTTP/1.1
// `HTTP2-Settings` header into the peer SETTINGS it represents, per
// RFC 7540 §3.2. Parsing the HTTP/1.1 request itself (headers,
// `Connection: Upgrade, HTTP2-Settings`) is the caller's job; this is
// the boundary where an already-accepted upgrade request hands off.
func UpgradeSettings(headerValue string) (Settings, error) {
	var st Settings
	st.Reset()

	payload, err := base64.RawURLEncoding.DecodeString(headerValue)
	if err != nil {
		return st, errBadUpgrade
	}

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.payload = payload

	if err := st.Deserialize(fr); err != nil {
		return st, err
	}
	return st, nil
}

// ServeUpgrade starts an HTTP/2 connection from an h2c upgrade: req is
// the already-parsed HTTP/1.1 request that carried the Upgrade header,
// c is the raw connection handed off immediately after the 101
// response was written, and clientSettings is the decoded
// HTTP2-Settings payload. Stream 1 is preloaded half-closed(remote) as
// spec §4.9 requires, carrying req as its request; it is admitted and
// dispatched before any client HTTP/2 frame is dispatched (the client's
// frames, per RFC 7540 §3.2, still begin with the client's
// connection preface and its real SETTINGS frame).
func ServeUpgrade(c net.Conn, handler fasthttp.RequestHandler, cfg *ServerConfig, req *fasthttp.Request, clientSettings Settings) error {
	cfg.defaults()
	conn := NewConnection(c, handler, cfg)
	conn.clientS = clientSettings
	conn.upgradeRequest = req
	return conn.Serve()
}
