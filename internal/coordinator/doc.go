// Package coordinator owns atlas scheduling and the single download channel.
//
// Ownership boundary:
// - metadata fetch and fan-out to every subscriber
//
// - next-atlas selection from the union of subscriber demand
//
// - strictly sequential fetches, one in flight per channel
//
// Lifecycle order:
// - activate -> metadata -> atlas rounds -> complete | halted
//
// - re-activation supersedes the current channel; completions carrying an old
// generation are dropped.
//
// The coordinator does not own display state. Subscribers are notified in
// registration order, and a subscriber's position is the image index it is
// bound to.
package coordinator
