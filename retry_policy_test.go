package captionkit

import "testing"

func TestRetryOnKinds(t *testing.T) {
	cond := RetryOnKinds(KindNetworkError, KindServerError)

	testCases := []struct {
		kind ErrorKind
		want bool
	}{
		{KindNetworkError, true},
		{KindServerError, true},
		{KindTimeout, false},
		{KindValidation, false},
		{KindUnknown, false},
	}

	for _, tc := range testCases {
		if got := cond(&Error{Kind: tc.kind}); got != tc.want {
			t.Errorf("RetryOnKinds(...)(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}

	if cond(nil) {
		t.Error("Expected nil error not to be retried")
	}
	if RetryOnKinds()(&Error{Kind: KindNetworkError}) {
		t.Error("Expected empty kind set to retry nothing")
	}
}
