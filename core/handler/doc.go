// Package handler defines the request handler contract used by the server's
// sessions, along with a function adapter and middleware chaining.
//
//	h := handler.HandlerFunc(func(ctx context.Context, req *httpcodec.Request) *httpcodec.Response {
//		res := httpcodec.NewResponse(200, req)
//		res.SetKeepAlive(req.KeepAlive())
//		res.Body = []byte("ok")
//		return res
//	})
//
//	wrapped := handler.Chain(h, middleware.Logging(log))
package handler
