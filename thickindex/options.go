package thickindex

// DefaultThreshold is the slot size above which a SmallList is promoted to
// a LargeSet.
const DefaultThreshold = 128

type options struct {
	threshold int
}

// Option configures a new ThickIndex.
type Option func(*options)

// WithThreshold sets the promotion threshold. It is stored with the index
// and cannot be changed afterwards.
func WithThreshold(n int) Option {
	return func(o *options) {
		o.threshold = n
	}
}
