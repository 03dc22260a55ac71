package jira

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
	krbconfig "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// negotiateTransport stamps a SPNEGO Negotiate token onto every outgoing
// request before handing it to the base transport. The session cookie the
// server sets in response makes follow-up calls cheap; the token is still
// attached on every request so an expired session re-negotiates in place.
type negotiateTransport struct {
	base    http.RoundTripper
	setAuth func(req *http.Request) error
}

func (t *negotiateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.setAuth(req); err != nil {
		return nil, fmt.Errorf("failed to negotiate kerberos token: %w", err)
	}
	return t.base.RoundTrip(req)
}

// newKerberosTransport builds a Negotiate transport from the ambient
// kerberos environment: the realm configuration from krb5.conf and the
// credential cache a prior kinit left behind. The service principal is
// derived from each request's host.
func newKerberosTransport(base http.RoundTripper) (*negotiateTransport, error) {
	cfg, err := krbconfig.Load(krb5ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load kerberos configuration: %w", err)
	}

	ccache, err := credentials.LoadCCache(ccachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to load kerberos credential cache (run kinit first): %w", err)
	}

	krb, err := krbclient.NewFromCCache(ccache, cfg, krbclient.DisablePAFXFAST(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kerberos client: %w", err)
	}

	return &negotiateTransport{
		base: base,
		setAuth: func(req *http.Request) error {
			return spnego.SetSPNEGOHeader(krb, req, "")
		},
	}, nil
}

func krb5ConfigPath() string {
	if path := os.Getenv("KRB5_CONFIG"); path != "" {
		return path
	}
	return "/etc/krb5.conf"
}

func ccachePath() string {
	if name := os.Getenv("KRB5CCNAME"); name != "" {
		return strings.TrimPrefix(name, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}
