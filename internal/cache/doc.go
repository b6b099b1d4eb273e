// Package cache provides the byte-budgeted LRU used to cache blob reads.
package cache
