package auth

import "strings"

// Allowlist restricts which Google accounts may log in. An empty allowlist
// allows any account.
type Allowlist struct {
	emails  map[string]bool
	domains map[string]bool
}

// NewAllowlist builds an allowlist from comma-separated email and domain
// lists, as read from the environment.
func NewAllowlist(emails, domains string) *Allowlist {
	a := &Allowlist{
		emails:  map[string]bool{},
		domains: map[string]bool{},
	}

	for _, e := range strings.Split(emails, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			a.emails[e] = true
		}
	}
	for _, d := range strings.Split(domains, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			a.domains[d] = true
		}
	}

	return a
}

// Allowed reports whether the email may log in.
func (a *Allowlist) Allowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}

	if len(a.emails) > 0 && a.emails[email] {
		return true
	}

	if len(a.domains) > 0 {
		parts := strings.Split(email, "@")
		return a.domains[parts[len(parts)-1]]
	}

	// No allowlist configured, only the email list can match.
	if len(a.emails) > 0 {
		return false
	}

	return true
}
