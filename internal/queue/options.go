package queue

type Options struct {
	// InitialCapacity preallocates the backing slice, typically to the
	// bound of a bounded queue.
	InitialCapacity int
	ShrinkOnClear   bool
}

type Option func(*Options)

func WithInitialCapacity(n int) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.InitialCapacity = n
		}
	}
}

func WithShrinkOnClear(shrink bool) Option {
	return func(opts *Options) {
		opts.ShrinkOnClear = shrink
	}
}

func defaultOptions() Options {
	return Options{
		ShrinkOnClear: true,
	}
}
