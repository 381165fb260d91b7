// Package server implements the MCP (Model Context Protocol) server for the
// image forensics tools.
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
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//   - image_evict: Drop one cached image, or all of them
//
// Forensics:
//   - forensics_list_analyzers: Known analyzer variants
//   - forensics_copy_move: Detect duplicated regions, with overlay. The image
//     is given by path or inline as image_base64
//   - forensics_crop_match: Crop a reported region for inspection
//   - forensics_compare_regions: Pixel agreement of two regions
//   - forensics_text_mask: Text regions excluded from matching
//
// # Image Caching
//
// Images are cached by path and reused across tool calls until image_evict
// drops them. A file changed on disk is only read again after eviction.
// Inline images are decoded per call and never cached.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC error responses:
//   - -32602: malformed arguments or a parameter out of range
//   - -32000: any other tool failure, with the Go error string as data
//   - -32601: unknown method
//
// # Usage
//
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
