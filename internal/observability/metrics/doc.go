// Package metrics provides the Prometheus collectors of the kairos process.
//
// All collectors are registered with the default registry through promauto
// and exposed on /metrics in schedule mode. A one-shot run records them too;
// they are simply never scraped.
//
// Example usage:
//
//	start := time.Now()
//	idea, err := generator.Generate(ctx, topic)
//	metrics.RecordPhase("ideate", time.Since(start), err)
package metrics
