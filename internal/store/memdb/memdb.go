package memdb

const (
	// DefaultCapacity is the number of records the store preallocates room for.
	DefaultCapacity = 100
)

type config struct {
	capacity int
}

type Option func(*config)

// WithCapacity allows us to preallocate room for a custom number of records.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity >= 0 {
			c.capacity = capacity
		}
	}
}
