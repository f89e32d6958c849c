// Package api exposes the bulletin service over HTTP.
//
// Routes mirror the web frontend's contract: key management, region and
// prompt lookups, saved history, the crawl-and-summarize call, and read
// access to archived bulletins. Errors are JSON objects with a "detail" field.
package api
