package extract

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

var mailtoRegex = regexp.MustCompile(`(?i)mailto:([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)

// emailPriorityPrefixes are common business mailbox prefixes, most
// desirable first.
var emailPriorityPrefixes = []string{
	"info@",
	"contact@",
	"contatto@",
	"contatti@",
	"vendite@",
	"sales@",
	"commerciale@",
	"commerciali@",
	"amministrazione@",
	"admin@",
	"support@",
	"supporto@",
	"hello@",
	"hi@",
}

// spamPrefixes are mailbox prefixes never worth contacting.
var spamPrefixes = []string{
	"noreply@",
	"no-reply@",
	"donotreply@",
	"example@",
	"test@",
	"demo@",
	"sample@",
	"webmaster@",
	"postmaster@",
	"abuse@",
	"spam@",
	"privacy@",
	"gdpr@",
	"dpo@",
	"cookie@",
}

// EmailExtractor pulls business email addresses out of page text and
// HTML.
type EmailExtractor struct{}

// ExtractFromText returns unique, non-spam emails found in text, in
// order of first appearance. When domain is non-empty only emails on
// that domain are kept.
func (e *EmailExtractor) ExtractFromText(text, domain string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var emails []string
	for _, match := range emailRegex.FindAllString(text, -1) {
		email := strings.ToLower(match)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if domain != "" && !matchesDomain(email, domain) {
			continue
		}
		if isSpamEmail(email) {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

// ExtractBest returns the most likely business contact address.
// Preference order: a priority prefix such as info@ or sales@, then a
// local part containing the company name, then the first email found.
func (e *EmailExtractor) ExtractBest(text, domain, companyName string) string {
	emails := e.ExtractFromText(text, domain)
	if len(emails) == 0 {
		return ""
	}
	for _, prefix := range emailPriorityPrefixes {
		for _, email := range emails {
			if strings.HasPrefix(email, prefix) {
				return email
			}
		}
	}
	if companyName != "" {
		slug := nonWord.ReplaceAllString(strings.ToLower(companyName), "")
		slug = strings.ReplaceAll(slug, " ", "")
		if slug != "" {
			for _, email := range emails {
				local, _, _ := strings.Cut(email, "@")
				if strings.Contains(local, slug) {
					return email
				}
			}
		}
	}
	return emails[0]
}

// ExtractFromHTML returns emails found in an HTML document. Addresses
// taken from mailto links come first since they are the most reliable.
func (e *EmailExtractor) ExtractFromHTML(html, domain string) []string {
	seen := make(map[string]struct{})
	var emails []string
	for _, m := range mailtoRegex.FindAllStringSubmatch(html, -1) {
		email := strings.ToLower(m[1])
		if _, dup := seen[email]; dup {
			continue
		}
		if domain != "" && !matchesDomain(email, domain) {
			continue
		}
		if isSpamEmail(email) {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	for _, email := range e.ExtractFromText(html, domain) {
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	return emails
}

// ValidFormat reports whether email looks like a deliverable address:
// regex shape plus RFC 5321 length limits and no consecutive dots.
func ValidFormat(email string) bool {
	if email == "" || len(email) > 320 {
		return false
	}
	if emailRegex.FindString(email) != email {
		return false
	}
	if strings.Contains(email, "..") {
		return false
	}
	at := strings.LastIndex(email, "@")
	local, domain := email[:at], email[at+1:]
	return len(local) <= 64 && len(domain) <= 255
}

func matchesDomain(email, domain string) bool {
	domain = strings.ToLower(domain)
	return strings.HasSuffix(email, "@"+domain) || strings.HasSuffix(email, "@www."+domain)
}

func isSpamEmail(email string) bool {
	for _, prefix := range spamPrefixes {
		if strings.HasPrefix(email, prefix) {
			return true
		}
	}
	return false
}
