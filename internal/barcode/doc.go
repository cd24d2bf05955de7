// Package barcode provides pluggable QR decoding backends behind one
// interface.
//
// The native backend runs this module's own locator and decoder and reports
// every candidate symbol. The gozxing backend wraps the ZXing port as a
// second opinion; it returns at most one symbol per image and carries no
// per-stage diagnostics.
package barcode
