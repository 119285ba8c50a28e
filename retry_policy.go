package captionkit

// DefaultRetryCondition retries network failures only. Timeouts and HTTP
// errors are terminal.
func DefaultRetryCondition(err *Error) bool {
	return err != nil && err.Kind == KindNetworkError
}

// RetryOnKinds returns a condition that retries any of the given kinds.
func RetryOnKinds(kinds ...ErrorKind) RetryCondition {
	set := make(map[ErrorKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(err *Error) bool {
		if err == nil {
			return false
		}
		_, ok := set[err.Kind]
		return ok
	}
}
