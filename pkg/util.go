package pkg

// Option is a functional option that transforms a value of type T.
type Option[T any] func(T) T

// Make returns the zero value of T with each of the given options applied in
// order.
func Make[T any](opts ...Option[T]) T {
	var v T

	return Wrap(v, opts...)
}

// Wrap applies each of the given options to v in order and returns the
// result. Nil options are skipped.
func Wrap[T any](v T, opts ...Option[T]) T {
	for _, opt := range opts {
		if opt != nil {
			v = opt(v)
		}
	}

	return v
}
