package validate

import (
	"net/mail"
	"strings"
)

// EmailVerdict is the outcome of checking one address.
type EmailVerdict struct {
	Valid     bool
	Reason    Reason
	RoleBased bool
}

var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"temp-mail.org":     true,
	"yopmail.com":       true,
	"trashmail.com":     true,
	"sharklasers.com":   true,
	"getnada.com":       true,
	"dispostable.com":   true,
	"maildrop.cc":       true,
	"throwawaymail.com": true,
	"fakeinbox.com":     true,
}

var placeholderDomains = map[string]bool{
	"example.com":     true,
	"example.org":     true,
	"example.net":     true,
	"test.com":        true,
	"domain.com":      true,
	"email.com":       true,
	"yourcompany.com": true,
	"company.com":     true,
	"sample.com":      true,
}

var placeholderLocals = map[string]bool{
	"test":               true,
	"testing":            true,
	"example":            true,
	"sample":             true,
	"user":               true,
	"email":              true,
	"name":               true,
	"yourname":           true,
	"your.name":          true,
	"firstname.lastname": true,
	"first.last":         true,
	"fake":               true,
	"null":               true,
	"none":               true,
	"xxx":                true,
}

var noReplyPrefixes = []string{"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply", "do_not_reply"}

var roleLocals = map[string]bool{
	"info":        true,
	"hr":          true,
	"careers":     true,
	"jobs":        true,
	"contact":     true,
	"sales":       true,
	"support":     true,
	"hello":       true,
	"office":      true,
	"recruiting":  true,
	"recruitment": true,
	"talent":      true,
	"team":        true,
	"admin":       true,
	"help":        true,
	"enquiries":   true,
	"inquiries":   true,
	"marketing":   true,
	"hiring":      true,
	"people":      true,
}

// CheckEmail validates a bare address. Disposable domains, placeholder
// domains, and placeholder or no-reply local parts are invalid. Shared
// role mailboxes are valid but flagged RoleBased.
func CheckEmail(addr string) EmailVerdict {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return EmailVerdict{Reason: ReasonEmailFormat}
	}

	at := strings.LastIndex(addr, "@")
	local, domain := addr[:at], addr[at+1:]
	dot := strings.LastIndex(domain, ".")
	if local == "" || dot <= 0 || len(domain)-dot-1 < 2 {
		return EmailVerdict{Reason: ReasonEmailFormat}
	}

	if disposableDomains[domain] {
		return EmailVerdict{Reason: ReasonEmailDisposable}
	}
	if placeholderDomains[domain] || placeholderLocals[local] {
		return EmailVerdict{Reason: ReasonEmailPlaceholder}
	}
	for _, p := range noReplyPrefixes {
		if strings.HasPrefix(local, p) {
			return EmailVerdict{Reason: ReasonEmailPlaceholder}
		}
	}

	return EmailVerdict{Valid: true, RoleBased: roleLocals[local]}
}
