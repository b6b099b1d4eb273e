// Package hash provides the checksum used for page and manifest integrity.
//
// All checksums in thickidx use CRC32-Castagnoli (CRC32C), which Go
// accelerates with SSE4.2 on x86 and the CRC extension on ARM.
//
//	checksum := hash.CRC32C(data)
package hash
