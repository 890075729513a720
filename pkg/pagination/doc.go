// Package pagination converts between page numbers and the offset/count pairs
// the upstream catalogs expect, and derives page metadata from a total.
//
// Example usage:
//
//	oc := pagination.ToOffsetCount(2, 20)
//	meta := pagination.ToMetadata(total, oc.Offset, oc.Count)
//
// All functions are pure.
package pagination
