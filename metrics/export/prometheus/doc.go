// Package prometheus renders portalauth metrics in Prometheus text
// exposition format.
//
// [NewExporter] accepts a [portalauth.Service] and exposes an
// [http.Handler] that writes every counter and the authenticate latency
// histogram. Counter names are portalauth_*_total; the histogram is
// portalauth_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler wherever they serve /metrics.
//   - Mutate service state.
package prometheus
