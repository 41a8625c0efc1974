// Package persistence stores sealed range bitmap indexes in a checksummed
// binary envelope and loads them back, either by copying into memory or by
// memory-mapping the file for zero-copy queries.
//
// # Envelope
//
// Every file starts with a fixed 32-byte envelope header carrying a magic
// number, format version, compression algorithm, payload sizes and a
// CRC32-Castagnoli checksum of the stored payload. The payload is the
// canonical serialized form of a rangebitmap.RangeBitmap.
//
// # Saving
//
//	err := persistence.SaveToFile("col.rbx", rb,
//	    persistence.WithCompression(persistence.CompressionZSTD))
//
// SaveToFile writes to a temporary file in the target directory and renames
// it into place, so readers never observe a partial file.
//
// # Loading
//
//	rb, err := persistence.LoadFromFile("col.rbx")
//
// Load decompresses and verifies the payload, then maps it. For uncompressed
// files, Open memory-maps the payload instead and queries run directly
// against the page cache:
//
//	mi, err := persistence.Open("col.rbx")
//	defer mi.Close()
//	rows := mi.RangeBitmap().Between(lo, hi)
package persistence
