package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// FeatureChecker checks feature provider availability.
type FeatureChecker interface {
	HealthCheck(ctx context.Context) error
}
