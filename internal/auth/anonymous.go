package auth

// AnonymousAccessPolicy lets unauthenticated callers through unless login is
// required.
type AnonymousAccessPolicy struct {
	LoginRequired bool
}

func (p AnonymousAccessPolicy) Allow(authenticated bool) bool {
	if !p.LoginRequired {
		return true
	}
	return authenticated
}
