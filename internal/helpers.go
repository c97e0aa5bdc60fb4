package internal

// Panics if given non-nil error.
// Should be used only in case of non-recoverable developer error.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// Must returns value, panicking on a developer error.
func Must[T any](value T, err error) T {
	PanicOnError(err)
	return value
}
