// Package httpclient provides an http.Client wrapper with SSRF protection
// for outbound LLM provider calls.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entalign/kgmorph/errors"
)

// SaferClient wraps http.Client with SSRF protection: scheme allowlisting,
// a redirect cap, and private/loopback IP blocking. Local inference servers
// need loopback access, so blocking is optional per client.
type SaferClient struct {
	*http.Client
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
}

// Options customizes SSRF protection.
type Options struct {
	// AllowPrivate permits loopback and RFC 1918 destinations. Enable only
	// for local inference endpoints.
	AllowPrivate bool
	// MaxRedirects caps redirect chains. 0 means the default of 10.
	MaxRedirects int
}

// New creates a SaferClient with the given request timeout.
func New(timeout time.Duration, opts Options) *SaferClient {
	maxRedirects := opts.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 10
	}

	c := &SaferClient{
		Client:         &http.Client{Timeout: timeout},
		allowedSchemes: []string{"http", "https"},
		blockPrivateIP: !opts.AllowPrivate,
		maxRedirects:   maxRedirects,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	if c.blockPrivateIP {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		c.Transport = &http.Transport{
			// Resolve-then-check guards against DNS rebinding: the IPs the
			// connection will actually use are the ones validated.
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				for _, ip := range ips {
					if isBlockedIP(ip) {
						return nil, errors.Newf("blocked IP address: %s", ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return c
}

// ValidateURL validates a URL string before creating a request.
func (c *SaferClient) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *SaferClient) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	if u.User != nil {
		// Credential injection or URL confusion: http://evil.com@localhost/
		return errors.New("URL contains userinfo (potential SSRF attempt)")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivateIP {
		if isLocalhostName(hostname) {
			return errors.New("localhost access blocked")
		}
		if ip := net.ParseIP(hostname); ip != nil && isBlockedIP(ip) {
			return errors.Newf("blocked IP address: %s", hostname)
		}
	}

	return nil
}

func isLocalhostName(hostname string) bool {
	h := strings.ToLower(hostname)
	return h == "localhost" || strings.HasSuffix(h, ".localhost")
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}
