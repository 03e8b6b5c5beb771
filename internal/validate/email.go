package validate

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var disposableDomains = map[string]struct{}{
	"tempmail.com": {}, "throwaway.email": {}, "guerrillamail.com": {},
	"10minutemail.com": {}, "mailinator.com": {}, "trashmail.com": {},
	"yopmail.com": {}, "fakeinbox.com": {}, "sharklasers.com": {},
}

var typoDomains = map[string]string{
	"gmial.com":   "gmail.com",
	"gmai.com":    "gmail.com",
	"gamil.com":   "gmail.com",
	"hotmai.com":  "hotmail.com",
	"hotnail.com": "hotmail.com",
	"yahooo.com":  "yahoo.com",
	"yaho.com":    "yahoo.com",
}

// MXLookupFunc resolves the MX hosts for a domain in preference order.
type MXLookupFunc func(ctx context.Context, domain string) ([]string, error)

// EmailValidator validates email addresses. MX lookups are cached per
// domain for the lifetime of the validator.
type EmailValidator struct {
	lookupMX MXLookupFunc

	mu      sync.Mutex
	mxCache map[string][]string
}

// NewEmailValidator returns a validator using the system DNS resolver.
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{
		lookupMX: systemMXLookup,
		mxCache:  make(map[string][]string),
	}
}

// NewEmailValidatorWithLookup returns a validator with a custom MX
// resolver, for tests.
func NewEmailValidatorWithLookup(lookup MXLookupFunc) *EmailValidator {
	return &EmailValidator{lookupMX: lookup, mxCache: make(map[string][]string)}
}

// ValidateFormat runs the offline checks: regex shape, disposable
// domain blocklist and common typo domains. A clean address scores
// 0.7; network checks are needed to go higher.
func (v *EmailValidator) ValidateFormat(email string) Result {
	email = strings.ToLower(strings.TrimSpace(email))

	if !emailPattern.MatchString(email) {
		return invalid(0, "invalid_format", "invalid email format")
	}

	domain := email[strings.LastIndex(email, "@")+1:]

	if _, ok := disposableDomains[domain]; ok {
		return Result{
			Details: map[string]any{"reason": "disposable_domain", "domain": domain},
			Error:   "disposable email domain",
		}
	}

	if suggested, ok := typoDomains[domain]; ok {
		return Result{
			Confidence: 0.3,
			Details: map[string]any{
				"reason":    "typo_domain",
				"domain":    domain,
				"suggested": strings.Replace(email, domain, suggested, 1),
			},
			Error: fmt.Sprintf("possible typo: did you mean %s?", suggested),
		}
	}

	return Result{
		IsValid:    true,
		Confidence: 0.7,
		Details: map[string]any{
			"email":        email,
			"domain":       domain,
			"format_valid": true,
		},
	}
}

// ValidateMX confirms the address's domain can receive mail. A domain
// with MX records scores 0.85, one without drops to an invalid 0.2.
func (v *EmailValidator) ValidateMX(ctx context.Context, email string) Result {
	formatResult := v.ValidateFormat(email)
	if !formatResult.IsValid {
		return formatResult
	}

	email = strings.ToLower(strings.TrimSpace(email))
	domain := email[strings.LastIndex(email, "@")+1:]

	records := v.cachedMX(ctx, domain)
	if len(records) == 0 {
		return Result{
			Confidence: 0.2,
			Details: map[string]any{
				"email":      email,
				"domain":     domain,
				"mx_records": []string{},
				"reason":     "no_mx_records",
			},
			Error: "domain has no MX records",
		}
	}

	if len(records) > 3 {
		records = records[:3]
	}
	return Result{
		IsValid:    true,
		Confidence: 0.85,
		Details: map[string]any{
			"email":       email,
			"domain":      domain,
			"mx_records":  records,
			"mx_verified": true,
		},
	}
}

// ValidateSMTP is the premium-level check. Real mailbox probes are
// routinely blocked by mail servers, so this currently confirms MX
// and notes that the SMTP step was skipped.
func (v *EmailValidator) ValidateSMTP(ctx context.Context, email string) Result {
	mxResult := v.ValidateMX(ctx, email)
	if !mxResult.IsValid {
		return mxResult
	}

	mxResult.Details["smtp_check"] = "skipped"
	mxResult.Confidence = 0.85
	return mxResult
}

func (v *EmailValidator) cachedMX(ctx context.Context, domain string) []string {
	v.mu.Lock()
	records, ok := v.mxCache[domain]
	v.mu.Unlock()
	if ok {
		return records
	}

	records, err := v.lookupMX(ctx, domain)
	if err != nil {
		records = nil
	}

	v.mu.Lock()
	v.mxCache[domain] = records
	v.mu.Unlock()
	return records
}

func systemMXLookup(ctx context.Context, domain string) ([]string, error) {
	mxs, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		// A records still mean the domain exists and may accept mail.
		if addrs, aerr := net.DefaultResolver.LookupHost(ctx, domain); aerr == nil && len(addrs) > 0 {
			return []string{domain}, nil
		}
		return nil, err
	}
	hosts := make([]string, 0, len(mxs))
	for _, mx := range mxs {
		hosts = append(hosts, strings.TrimSuffix(mx.Host, "."))
	}
	return hosts, nil
}
