// Package session owns the per-connection state shared by the listener and
// sender roles.
//
// Ownership boundary:
// - connect/read/write timeout and retry delay defaults
// - the fixed, cancelable retry wait
// - account record codec used by the login and registration handshake
// - the Session value owned by the reconnect loop while a connection is live
package session
