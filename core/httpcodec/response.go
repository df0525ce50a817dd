package httpcodec

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response is a structured HTTP response. Content-Length is derived from Body
// when the response is written; a Content-Length field set on Header is ignored.
type Response struct {
	StatusCode int
	ProtoMajor int
	ProtoMinor int
	Header     Header
	Body       []byte

	// HeadOnly declares the length of Body without sending it.
	HeadOnly bool
}

// NewResponse creates a response that mirrors the protocol version of req.
// A nil req yields HTTP/1.1.
func NewResponse(status int, req *Request) *Response {
	res := &Response{StatusCode: status, ProtoMajor: 1, ProtoMinor: 1}
	if req != nil {
		res.ProtoMajor, res.ProtoMinor = req.ProtoMajor, req.ProtoMinor
	}
	return res
}

// SetKeepAlive adjusts the Connection field so that KeepAlive reports ka
// for this response's protocol version.
func (r *Response) SetKeepAlive(ka bool) {
	if r.ProtoMajor == 1 && r.ProtoMinor == 0 {
		if ka {
			r.Header.Set(HeaderConnection, "keep-alive")
		} else {
			r.Header.Del(HeaderConnection)
		}
		return
	}
	if ka {
		r.Header.Del(HeaderConnection)
	} else {
		r.Header.Set(HeaderConnection, "close")
	}
}

// KeepAlive reports whether the response leaves the connection open.
func (r *Response) KeepAlive() bool {
	return keepAlive(r.ProtoMajor, r.ProtoMinor, &r.Header)
}

// NeedEOF reports whether the connection must be closed after this response
// is written.
func (r *Response) NeedEOF() bool {
	return !r.KeepAlive()
}

// ContentLength is the declared body length.
func (r *Response) ContentLength() int64 {
	return int64(len(r.Body))
}

// WriteTo serializes the response to w in a single Write call.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.AppendTo(make([]byte, 0, 256+len(r.Body))))
	return int64(n), err
}

// AppendTo appends the wire form of the response to b.
func (r *Response) AppendTo(b []byte) []byte {
	b = append(b, "HTTP/"...)
	b = strconv.AppendInt(b, int64(r.ProtoMajor), 10)
	b = append(b, '.')
	b = strconv.AppendInt(b, int64(r.ProtoMinor), 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(r.StatusCode), 10)
	b = append(b, ' ')
	b = append(b, http.StatusText(r.StatusCode)...)
	b = append(b, "\r\n"...)

	for name, value := range r.Header.All() {
		if strings.EqualFold(name, HeaderContentLength) || strings.EqualFold(name, HeaderTransferEncoding) {
			continue
		}
		b = append(b, name...)
		b = append(b, ": "...)
		b = append(b, sanitizeValue(value)...)
		b = append(b, "\r\n"...)
	}

	if bodyAllowed(r.StatusCode) {
		b = append(b, HeaderContentLength...)
		b = append(b, ": "...)
		b = strconv.AppendInt(b, r.ContentLength(), 10)
		b = append(b, "\r\n"...)
	}
	b = append(b, "\r\n"...)

	if !r.HeadOnly && bodyAllowed(r.StatusCode) {
		b = append(b, r.Body...)
	}
	return b
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// sanitizeValue strips CR and LF so a value cannot inject header lines.
func sanitizeValue(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, v)
}
