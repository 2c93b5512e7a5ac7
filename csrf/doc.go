// Package csrf implements stateless double-submit tokens with two isolated
// flows: anonymous tokens bound to the client's address and user agent over
// a rolling time window, and authenticated tokens bound to the user id with
// a fixed age budget. Tokens are HMAC-signed JSON, verified in constant
// time, and the flows never interchange.
package csrf
