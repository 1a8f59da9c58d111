package request

import (
	"crypto/tls"
	"net"
)

// Compression is the response compression negotiated for a connection
type Compression int

// Compression values
const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionDeflate // raw deflate, no zlib or gzip framing
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionDeflate:
		return "deflate"
	default:
		return "identity"
	}
}

// Conn describes the client connection a request arrived on. It is owned by
// the connection layer; requests only refer to it.
type Conn struct {
	ID          uint64
	Addr        net.Addr
	Compression Compression
	TLS         *tls.ConnectionState // nil for plain connections
	PeerSubject *string              // nil when the peer presented no certificate
}

// Method is an HTTP request method
type Method int

// Method values
const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
)

var methodNames = map[Method]string{
	MethodUnknown: "UNKNOWN",
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return methodNames[MethodUnknown]
}

// ParseMethod maps a method name to Method. Names are case-sensitive as in
// HTTP; HEAD is served as GET.
func ParseMethod(s string) Method {
	switch s {
	case "GET", "HEAD":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnknown
	}
}
