// Package imaging loads, crops, compares and encodes images for the
// forensics tools.
//
// # Coordinate System
//
// All coordinates are relative to the image's top-left corner, whatever the
// image's Bounds().Min is. X increases rightward and Y downward; rectangles
// are half-open (Min inclusive, Max exclusive), as with image.Rectangle.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless
// and never modify their input images.
package imaging
