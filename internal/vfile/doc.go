// Package vfile mints, encodes, decodes and verifies vfile credentials.
//
// A vfile is a bearer capability for exactly one hosted-file account. It is a
// URL of the shape
//
//	http://example.org/vfile?token=<64 hex>&ts=<unix seconds>&sig=<hex mac>
//
// where sig = MAC(secret, "token:ts:nickname"). The nickname is not part of
// the URL: the server finds the account by token and then verifies the MAC
// against that account's nickname, so a triple issued for one nickname never
// verifies for another.
//
// Decoding and verification are separate steps. DecodeURL only reports
// whether the presentation is well-formed; Signer.Verify decides whether the
// credential is genuine. Callers map the two failures to different errors.
package vfile
