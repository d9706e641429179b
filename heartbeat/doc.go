// Package heartbeat keeps a client-side session alive by invoking a touch
// callback on a fixed interval and classifying the outcome into a small
// state machine: Idle, Active, Degraded, Stopped.
//
// A touch failure classified as session-expired moves straight to
// Degraded and fires OnSessionExpired once. Transient failures are
// tolerated until the threshold is reached inside the rolling window;
// after a failure the loop retries on the shorter RetryInterval so the
// window can actually accumulate. A later success returns the runner to
// Active and re-arms the callbacks.
//
// # What this package must NOT do
//
//   - Decide what "expired" means. The caller supplies the classifier,
//     usually errors.Is against its own sentinels.
//   - Retry forever on its own. After Degraded the loop keeps beating so
//     a recovered backend is noticed, but it never re-fires callbacks
//     without an intervening success.
package heartbeat
