// Package uniqueindex implements an ordered map from model.Key to a 64-bit
// value, persisted as a single store object.
//
// The map is a copy-on-write B-tree. Range and Prefix iterate over a lazy
// clone taken when they are called, so the caller may mutate the index while
// iterating. The index does not lock itself against concurrent mutation; its
// owner must serialize writers against readers.
package uniqueindex
