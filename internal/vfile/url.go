package vfile

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformed is returned by DecodeURL for any presentation that is not a
// well-formed vfile URL. It says nothing about whether the credential is genuine.
var ErrMalformed = errors.New("vfile: malformed url")

// Path is the path component of every vfile URL.
const Path = "/vfile"

// Codec turns credentials into vfile URLs for one public site and back.
type Codec struct {
	scheme string
	host   string
}

// NewCodec creates a Codec for URLs under scheme://host.
func NewCodec(scheme, host string) *Codec {
	if scheme == "" {
		scheme = "http"
	}
	return &Codec{scheme: scheme, host: host}
}

// EncodeURL returns scheme://host/vfile?token=..&ts=..&sig=..
//
// The parameter order is fixed; each value is escaped on its own.
func (c *Codec) EncodeURL(cred Credential) string {
	var b strings.Builder
	b.WriteString(c.scheme)
	b.WriteString("://")
	b.WriteString(c.host)
	b.WriteString(Path)
	b.WriteString("?token=")
	b.WriteString(url.QueryEscape(cred.Token))
	b.WriteString("&ts=")
	b.WriteString(strconv.FormatInt(cred.IssuedAt, 10))
	b.WriteString("&sig=")
	b.WriteString(url.QueryEscape(cred.Signature))
	return b.String()
}

// PublicURL returns the address a nickname's social.org is served from.
func (c *Codec) PublicURL(nickname string) string {
	return fmt.Sprintf("%s://%s/%s/social.org", c.scheme, c.host, url.PathEscape(nickname))
}

// DecodeURL parses the token, ts and sig query parameters of raw.
// Scheme, host and path are not checked. The signature is not verified.
func DecodeURL(raw string) (Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, fmt.Errorf("%w: empty", ErrMalformed)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	token := q.Get("token")
	ts := q.Get("ts")
	sig := q.Get("sig")
	if token == "" || ts == "" || sig == "" {
		return Credential{}, fmt.Errorf("%w: token, ts and sig are all required", ErrMalformed)
	}

	issuedAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: ts is not an integer", ErrMalformed)
	}

	return Credential{Token: token, IssuedAt: issuedAt, Signature: sig}, nil
}
