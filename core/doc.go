// Package core defines the object identifier shared by all thickidx packages.
package core
