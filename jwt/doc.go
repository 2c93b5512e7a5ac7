// Package jwt manages access-token issuance and verification using
// configured signing keys and strict validation semantics suitable for
// low-latency authentication paths. Secrets rotate in place through
// Manager.Rotate or a watched key file; older keys stay in the verify ring
// until their tokens age out.
package jwt
