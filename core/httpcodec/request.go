package httpcodec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
)

const (
	// DefaultBufferSize bounds the length of a single request or header line.
	DefaultBufferSize = 8 << 10

	// DefaultMaxBodyBytes is the largest request body ReadRequest accepts by default.
	DefaultMaxBodyBytes = 64 << 10

	maxHeaderFields = 100
)

// Request is one parsed HTTP request. It is not retained across exchanges.
type Request struct {
	Method     string
	Target     string
	ProtoMajor int
	ProtoMinor int
	Header     Header
	Body       []byte
}

// Proto returns the version string, e.g. "HTTP/1.1".
func (r *Request) Proto() string {
	return "HTTP/" + strconv.Itoa(r.ProtoMajor) + "." + strconv.Itoa(r.ProtoMinor)
}

// KeepAlive reports whether the client expects the connection to persist.
// HTTP/1.1 persists unless "Connection: close" is sent; HTTP/1.0 closes
// unless "Connection: keep-alive" is sent.
func (r *Request) KeepAlive() bool {
	return keepAlive(r.ProtoMajor, r.ProtoMinor, &r.Header)
}

func keepAlive(major, minor int, h *Header) bool {
	if major == 1 && minor == 0 {
		return h.hasToken(HeaderConnection, "keep-alive")
	}
	return !h.hasToken(HeaderConnection, "close")
}

// ReadRequest reads one complete request from br.
//
// It returns ErrEndOfStream when br hits EOF before the first byte of the
// request. Framing problems wrap ErrMalformedRequest, ErrHeaderTooLarge,
// ErrBodyTooLarge or ErrUnsupportedVersion. I/O errors, including deadline
// expiry, are returned wrapped so errors.Is still matches them.
func ReadRequest(br *bufio.Reader, maxBody int64) (*Request, error) {
	line, err := readRequestLine(br)
	if err != nil {
		return nil, err
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	if err := readHeader(br, &req.Header); err != nil {
		return nil, err
	}

	if err := readBody(br, req, maxBody); err != nil {
		return nil, err
	}

	return req, nil
}

// readRequestLine skips blank lines a client may send between requests.
func readRequestLine(br *bufio.Reader) (string, error) {
	for {
		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) == 0 {
				return "", ErrEndOfStream
			}
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: unexpected EOF in request line", ErrMalformedRequest)
			}
			return "", fmt.Errorf("read request line: %w", err)
		}
		if line != "" {
			return line, nil
		}
	}
}

func parseRequestLine(line string) (*Request, error) {
	// Exactly one SP on each side of the target; the target may be empty.
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || strings.IndexByte(proto, ' ') >= 0 {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, line)
	}

	if !isToken(method) {
		return nil, fmt.Errorf("%w: bad method %q", ErrMalformedRequest, method)
	}

	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok {
		return nil, fmt.Errorf("%w: bad version %q", ErrMalformedRequest, proto)
	}
	if major != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, proto)
	}

	return &Request{
		Method:     method,
		Target:     target,
		ProtoMajor: major,
		ProtoMinor: minor,
	}, nil
}

func readHeader(br *bufio.Reader, h *Header) error {
	for {
		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: unexpected EOF in header", ErrMalformedRequest)
			}
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" {
			return nil
		}
		if h.Len() >= maxHeaderFields {
			return fmt.Errorf("%w: more than %d fields", ErrHeaderTooLarge, maxHeaderFields)
		}
		if line[0] == ' ' || line[0] == '\t' {
			return fmt.Errorf("%w: obsolete line folding", ErrMalformedRequest)
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !isToken(name) {
			return fmt.Errorf("%w: bad header line %q", ErrMalformedRequest, line)
		}
		h.Add(name, strings.Trim(value, " \t"))
	}
}

func readBody(br *bufio.Reader, req *Request, maxBody int64) error {
	h := &req.Header

	if h.Has(HeaderTransferEncoding) {
		if h.Has(HeaderContentLength) {
			return fmt.Errorf("%w: both Transfer-Encoding and Content-Length", ErrMalformedRequest)
		}
		if !isChunkedLast(h.Values(HeaderTransferEncoding)) {
			return fmt.Errorf("%w: unsupported transfer coding", ErrMalformedRequest)
		}
		return readChunkedBody(br, req, maxBody)
	}

	n, err := contentLength(h)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if n > maxBody {
		return fmt.Errorf("%w: %d > %d bytes", ErrBodyTooLarge, n, maxBody)
	}

	req.Body = make([]byte, n)
	if _, err := io.ReadFull(br, req.Body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: body shorter than Content-Length", ErrMalformedRequest)
		}
		return fmt.Errorf("read body: %w", err)
	}
	return nil
}

func readChunkedBody(br *bufio.Reader, req *Request, maxBody int64) error {
	body, err := io.ReadAll(io.LimitReader(httputil.NewChunkedReader(br), maxBody+1))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated chunked body", ErrMalformedRequest)
		}
		return fmt.Errorf("read chunked body: %w", err)
	}
	if int64(len(body)) > maxBody {
		return fmt.Errorf("%w: chunked body exceeds %d bytes", ErrBodyTooLarge, maxBody)
	}
	if len(body) > 0 {
		req.Body = body
	}

	// Trailer fields are read and discarded.
	var trailer Header
	return readHeader(br, &trailer)
}

func contentLength(h *Header) (int64, error) {
	vals := h.Values(HeaderContentLength)
	if len(vals) == 0 {
		return 0, nil
	}
	for _, v := range vals[1:] {
		if v != vals[0] {
			return 0, fmt.Errorf("%w: conflicting Content-Length values", ErrMalformedRequest)
		}
	}
	n, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil || !isDigits(vals[0]) {
		return 0, fmt.Errorf("%w: bad Content-Length %q", ErrMalformedRequest, vals[0])
	}
	return n, nil
}

func isChunkedLast(values []string) bool {
	last := ""
	for _, v := range values {
		for elem := range strings.SplitSeq(v, ",") {
			if e := strings.TrimSpace(elem); e != "" {
				last = e
			}
		}
	}
	return strings.EqualFold(last, "chunked")
}

// readLine returns one line without its CRLF or LF terminator.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrHeaderTooLarge, br.Size())
	}
	if err != nil {
		return string(line), err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

// isDigits reports whether s is 1*DIGIT, without sign or spaces.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
