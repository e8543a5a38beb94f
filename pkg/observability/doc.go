/*
Package observability exposes Prometheus metrics for the pipeline.

It covers graph execution (node durations, run results, suspensions) and
classifier usage (calls, tokens, estimated spend). Metrics are registered on
the default registry; serve them with promhttp.Handler.
*/
package observability
