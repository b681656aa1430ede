// Package relay implements the real-time guild chat relay.
//
// It keeps websocket lifecycle, room membership, and presence fan-out in
// process memory so clients only ever observe complete room transitions:
// device replacement, secret-visibility deltas, and leave notices are applied
// atomically with respect to every other connection event.
package relay
