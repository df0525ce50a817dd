// Package status implements the server's single request handler: GET and HEAD
// on "/" answer with a fixed JSON status document, every other method is a
// 400 and every other target is a 404.
package status
