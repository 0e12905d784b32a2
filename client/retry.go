package client

// RetryPolicy bounds identity requests per read. MaxAttempts counts requests
// to the read endpoint, so at most MaxAttempts-1 refreshes happen in between.
// Values below 1 behave as 1, which disables refresh.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy allows one refresh and one retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}
