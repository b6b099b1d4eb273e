// Package manifest implements atomic manifest persistence for the object store.
//
// # Overview
//
// A manifest is the table of contents of one committed store version: the
// next free OID, the root object and, for every live object, the generation
// of the blob that holds its current page. Object blobs are never overwritten;
// a modified object is written under a new generation, so a crash between the
// object writes and the manifest switch leaves the previous version intact.
//
// # Binary Format
//
//	Header (16 bytes):
//	  Magic    (4 bytes) - 0x54484b4d ("THKM")
//	  Version  (4 bytes) - Format version (currently 1)
//	  Checksum (4 bytes) - CRC32-C of payload
//	  Length   (4 bytes) - Payload length in bytes
//
//	Payload:
//	  ID         (8 bytes) - Manifest version ID
//	  CreatedAt  (8 bytes) - Unix nanoseconds
//	  NextOID    (4 bytes) - Next OID to allocate
//	  Root       (4 bytes) - Root object OID, 0 if unset
//	  NumObjects (4 bytes)
//	  Objects[]:
//	    OID  (4 bytes)
//	    Kind (2 bytes)
//	    Gen  (8 bytes) - manifest ID at which the page was written
//	    Size (4 bytes) - page size in bytes
//
// # Atomic Protocol
//
//  1. Write manifest blob to manifests/MANIFEST-NNNNNN.bin
//  2. Update the CURRENT pointer blob to reference the new manifest
//
// Load reads CURRENT to find the active manifest, then loads that blob.
package manifest
