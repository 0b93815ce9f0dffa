package limiter

import (
	"context"
	"fmt"
	"time"
)

func ExampleLimiter() {
	l, err := New(NewMemoryStore(nil), Config{
		Limit:           10,
		Window:          time.Second,
		BurstPercent:    20,
		RetryAttempts:   3,
		RetryDelay:      100 * time.Millisecond,
		CleanupInterval: 5 * time.Minute,
		ScanBatchSize:   100,
		FailOpen:        true,
	})
	if err != nil {
		panic(err)
	}

	res, err := l.Allow(context.Background(), "user_123")
	if err != nil {
		panic(err)
	}

	fmt.Println(res.Allowed, res.Limit, res.Remaining)
	// Output:
	// true 12 11
}
