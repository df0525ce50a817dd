// Package httpcodec converts between the HTTP/1.x wire format and structured
// request and response values.
//
// It covers exactly what a single-route server needs: the request line,
// header fields (case-insensitive names, duplicates kept in order), bodies
// framed by Content-Length or chunked transfer coding, and keep-alive
// negotiation for HTTP/1.0 and HTTP/1.1.
//
// Reading
//
//	br := bufio.NewReaderSize(conn, httpcodec.DefaultBufferSize)
//	for {
//		req, err := httpcodec.ReadRequest(br, httpcodec.DefaultMaxBodyBytes)
//		if errors.Is(err, httpcodec.ErrEndOfStream) {
//			return // peer closed between requests
//		}
//		...
//	}
//
// The same bufio.Reader must be reused for the whole connection: bytes of a
// pipelined next request stay buffered in it.
//
// Writing
//
//	res := httpcodec.NewResponse(200, req)
//	res.Header.Set(httpcodec.HeaderContentType, "application/json")
//	res.SetKeepAlive(req.KeepAlive())
//	res.Body = payload
//	_, err := res.WriteTo(conn)
//
// Content-Length is always computed from Body. Setting HeadOnly keeps the
// declared length but suppresses the body bytes, which is what a HEAD
// response needs.
package httpcodec
