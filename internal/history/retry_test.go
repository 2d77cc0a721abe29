package history

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyExhausted(t *testing.T) {
	assert.False(t, RetryPolicy{}.exhausted(1000))
	assert.False(t, RetryPolicy{MaxAttempts: 3}.exhausted(2))
	assert.True(t, RetryPolicy{MaxAttempts: 3}.exhausted(3))
}

func TestRetryPolicyBackOff(t *testing.T) {
	zero := RetryPolicy{}.newBackOff(context.Background())
	assert.Zero(t, zero.NextBackOff())

	capped := RetryPolicy{InitialInterval: 10 * time.Millisecond, MaxInterval: 20 * time.Millisecond, Multiplier: 2}.newBackOff(context.Background())
	for i := 0; i < 5; i++ {
		assert.LessOrEqual(t, capped.NextBackOff(), 30*time.Millisecond)
	}

	budget := RetryPolicy{InitialInterval: 10 * time.Millisecond, MaxElapsedTime: time.Millisecond}.newBackOff(context.Background())
	assert.Equal(t, backoff.Stop, budget.NextBackOff())
}

func TestFetchHistoriesRetryBudget(t *testing.T) {
	src := &flakySource{failures: map[string]int{"bitcoin": 100}}
	f, _ := newTestFetcher(t, src, RetryPolicy{InitialInterval: 10 * time.Millisecond, MaxElapsedTime: time.Millisecond})

	res, err := f.FetchHistories(context.Background(), entities("bitcoin"))
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, res.Failed, "bitcoin")
	assert.Equal(t, 1, src.count("bitcoin"))
}
