// Package token encodes, decodes, and verifies the portal's access and
// refresh tokens.
//
// Two physical encodings share one logical schema. The primary format is an
// HS256-signed JWT verified against the configured secret, issuer, and
// audience. The legacy format (plain Base64 of the same JSON payload, no
// signature) is accepted only as an ordered fallback for tokens issued
// before signing was introduced. [Codec.Decode] tries the signed path
// first and falls through to the legacy path; failure reasons from both
// attempts are retained on the final error for diagnostics.
//
// Decoding is pure apart from a clock read for expiry; the codec performs
// no I/O and is safe for concurrent use.
//
// # What this package must NOT do
//
//   - Consult the session store or the user directory; liveness and account
//     status are the caller's concern.
//   - Require byte-exact Base64 round-trips on the legacy path. Padding
//     variants of the same payload are all valid.
package token
