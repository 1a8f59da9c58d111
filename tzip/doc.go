// Package tzip compresses and decompresses HTTP bodies and transport
// messages.
//
// Two container formats are supported, selected by the raw flag of every
// function: gzip (RFC 1952 header and trailer around a deflate stream), used
// for Content-Encoding: gzip, and raw deflate (no header at all), used for
// Content-Encoding: deflate and for frame-based transports.
//
// # One-shot coding
//
// Compress and Decompress code a whole buffer at once. The output buffer
// starts at ChunkSize and grows one chunk at a time; the returned slice is
// trimmed to the bytes actually produced. On failure nothing is returned.
//
// # Streams
//
// A Stream keeps one deflate context alive for the lifetime of a connection so
// that consecutive messages can refer back to the data of earlier ones. Each
// call to Stream.Compress ends with a sync flush, and the empty stored block
// that the sync flush appends (00 00 ff ff) is cut off the returned message.
//
// The receiving side decodes each message with Stream.Decompress, passing the
// dictionary returned by the previous call:
//
//	var dict []byte
//	for msg := range messages {
//	    data, dict, err = stream.Decompress(msg, dict)
//	    if err != nil {
//	        return err
//	    }
//	    handle(data)
//	}
//
// A Stream must be closed exactly once when the connection goes away. Errors
// from Compress or Decompress leave the stream open.
package tzip
