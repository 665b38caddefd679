// Package manifest implements atomic, versioned persistence of catalog images.
//
// # Overview
//
// Every committed catalog state is written as an immutable image. An image
// carries the encoded catalog payload, the codec that produced it and the
// compression applied to it, so old images stay readable after defaults
// change.
//
// # Binary Format
//
//	Header (16 bytes):
//	  Magic    (4 bytes) - 0x504C4341 ("PLCA")
//	  Version  (4 bytes) - Format version (currently 1)
//	  Checksum (4 bytes) - CRC32-IEEE of payload
//	  Length   (4 bytes) - Payload length in bytes
//
//	Payload:
//	  ID          (8 bytes) - Image version ID
//	  CreatedAt   (8 bytes) - Unix nanoseconds
//	  Codec       (string)  - Codec name of the body
//	  Compression (1 byte)  - None, LZ4 or ZSTD
//	  RawLength   (4 bytes) - Uncompressed body length
//	  Body        (bytes)   - 4-byte length prefix + (compressed) body
//
// Strings are length-prefixed (2-byte length + bytes).
//
// # Atomic Protocol
//
//  1. Write the image blob to MANIFEST-NNNNNN.bin
//  2. Atomically update the CURRENT pointer to reference it
//
// Load reads CURRENT to find the active image, then loads that file. A
// crash between the two steps leaves an unreferenced image that Prune
// removes later.
//
// # Thread Safety
//
// All Store methods are protected by a mutex and safe for concurrent use.
package manifest
