// Package protocol owns the failure taxonomy shared by the chat roles.
//
// Ownership boundary:
// - closed error-kind enumeration for transport and handshake failures
// - classification of arbitrary errors into a kind
// - kind -> recovery action mapping used by the reconnect loop
//
// Wire primitives live in subpackages:
// - line: newline-delimited stream transport
// - session: session config, account record codec, retry wait
package protocol
