package health

import "context"

// Status is the aggregated service health.
type Status string

const (
	// Healthy means every checked dependency answered.
	Healthy Status = "ok"
	// Degraded means at least one dependency failed its check.
	Degraded Status = "degraded"
)

// CheckResult is the outcome of a single dependency check.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report carries the aggregate status plus the per-dependency results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service probes the dependencies the pipeline cannot run without.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding may be nil when no provider check is wanted.
func New(store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check probes the vector store and, when configured, the embedding provider.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		"vector_store": resultOf(s.store.Ping(ctx)),
	}
	if s.embedding != nil {
		checks["embedding"] = resultOf(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func resultOf(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
