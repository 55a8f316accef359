package idempotency

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL outlives any plausible redelivery window of the two dispatch
// paths.
const DefaultTTL = 7 * 24 * time.Hour

// Guard is the acquire-once primitive effectful handlers call before an
// effect that is not naturally safe to repeat. The first caller within the
// TTL window gets true; everyone else gets false until the key expires.
type Guard interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Key builds the <domain>:<effect>:<aggregateId> convention.
func Key(domain, effect string, aggregateID any) string {
	return fmt.Sprintf("%s:%s:%v", domain, effect, aggregateID)
}
