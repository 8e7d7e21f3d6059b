package realtime

import (
	"net/http"
	"net/url"

	"github.com/alexanderramin/tempo/internal/domain"
)

// Identity headers set by the authenticating proxy in front of the server.
const (
	HeaderUserID = "X-User-ID"
	HeaderOrgID  = "X-Org-ID"
	HeaderRole   = "X-Role"
)

// identityFrom reads the caller from query parameters, falling back to the
// identity headers. The identity is trusted as given.
func identityFrom(r *http.Request) (domain.Identity, error) {
	q := r.URL.Query()
	id := domain.Identity{
		UserID:         domain.CoalesceStr(q.Get("user"), r.Header.Get(HeaderUserID)),
		OrganizationID: domain.CoalesceStr(q.Get("org"), r.Header.Get(HeaderOrgID)),
		Role:           domain.Role(domain.CoalesceStr(q.Get("role"), r.Header.Get(HeaderRole))),
	}
	if err := id.Validate(); err != nil {
		return domain.Identity{}, err
	}
	id.Role = id.EffectiveRole()
	return id, nil
}

// identityQuery encodes id the way identityFrom reads it.
func identityQuery(id domain.Identity) url.Values {
	q := url.Values{}
	q.Set("user", id.UserID)
	q.Set("org", id.OrganizationID)
	if id.Role != "" {
		q.Set("role", string(id.Role))
	}
	return q
}
