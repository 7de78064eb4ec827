// Package server implements the MCP (Model Context Protocol) server for the
// image pipeline.
//
// This package provides a JSON-RPC 2.0 server that exposes the pipeline's
// transforms through the MCP protocol, so an MCP client can convert,
// compress, upscale and stylize image files on disk.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Inspection:
//   - image_info: Dimensions, format and size of an image
//   - image_verify: Flag unreadable, low resolution or suspiciously small files
//   - image_alt_text: Suggest ALT text and an SEO-friendly name
//   - image_edge_map: Render the Sobel edge magnitude used by the stylizers
//
// Transforms (one image):
//   - image_convert, image_compress, image_upscale
//   - image_cartoon, image_sketch
//
// Batch:
//   - image_process_batch: One operation over up to 101 images
//
// # Output
//
// Transform results are either written into an output directory, alongside
// a manifest.yaml describing every file written there, or returned inline
// as base64 when no directory is configured or given.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The error string, which names the failure kind for pipeline
//     errors (e.g. "photo.png: DecodeFailure: ...")
//
// Within a batch, per-image failures are not errors: they are reported on
// the failing item and the rest of the batch completes.
//
// # Usage
//
//	srv := server.New(server.Options{Logger: logger})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
