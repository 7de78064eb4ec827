// Package imaging holds the pixel-level stages of the pipeline: source
// loading, geometry resolution, resampling, edge detection and the
// stylization filters.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. A Rect is an origin plus a
// size; it never extends past its image.
//
// # Pixel Format
//
// Every stage works on RasterImage, an 8-bit RGBA buffer with straight
// (non-premultiplied) alpha. Decoded sources of any color model are
// converted once on load; later stages never see another layout.
//
// # Thread Safety
//
// RasterImages are never modified after construction, so one image may be
// read by any number of goroutines. Every stage returns a new image. The
// ImageCache type is safe for concurrent use.
//
// # Error Handling
//
// Geometry failures wrap ErrInvalidGeometry and undecodable input wraps
// ErrDecode, so callers can classify them with errors.Is.
package imaging
