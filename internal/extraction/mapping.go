package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"qservice/api/internal/report"
)

var (
	zipToken    = regexp.MustCompile(`^\d{4}$`)
	houseNumber = regexp.MustCompile(`^\d+[a-zA-Z]?$`)
	zipCity     = regexp.MustCompile(`^(\d{4,5})\s*(.*)$`)
)

var streetSuffixes = []string{"strasse", "straße", "str.", "weg", "platz", "gasse", "allee"}

// SplitOwnerAddress cuts a name field at the first address-like token and
// parses the remainder into street, zip and city.
func SplitOwnerAddress(s string) (owner, street, zip, city string) {
	tokens := strings.Fields(strings.ReplaceAll(s, ",", " "))
	cut := len(tokens)
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if isStreetToken(lower) || zipToken.MatchString(tok) {
			cut = i
			break
		}
		if houseNumber.MatchString(tok) && i > 0 {
			cut = i - 1
			break
		}
	}
	owner = strings.Join(tokens[:cut], " ")
	rest := tokens[cut:]
	if len(rest) == 0 {
		return owner, "", "", ""
	}
	zipAt := -1
	for i, tok := range rest {
		if zipToken.MatchString(tok) {
			zipAt = i
			break
		}
	}
	if zipAt < 0 {
		return owner, strings.Join(rest, " "), "", ""
	}
	return owner, strings.Join(rest[:zipAt], " "), rest[zipAt], strings.Join(rest[zipAt+1:], " ")
}

func isStreetToken(lower string) bool {
	if lower == "str." {
		return true
	}
	for _, suffix := range streetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// SplitZipCity parses "8005 Zürich".
func SplitZipCity(s string) (zip, city string) {
	s = strings.TrimSpace(s)
	if m := zipCity.FindStringSubmatch(s); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", s
}

// NormalizePhone formats Swiss numbers as +41 XX XXX XX XX. Numbers it does
// not recognise are returned trimmed.
func NormalizePhone(s string) string {
	s = report.Clean(s)
	if s == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case strings.HasPrefix(d, "0041"):
		d = d[4:]
	case strings.HasPrefix(s, "+41") || (strings.HasPrefix(d, "41") && len(d) == 11):
		d = d[2:]
	case strings.HasPrefix(d, "0") && len(d) == 10:
		d = d[1:]
	default:
		return s
	}
	// +41 (0)79 ... keeps the trunk zero after the country code.
	if len(d) == 10 && d[0] == '0' {
		d = d[1:]
	}
	if len(d) != 9 {
		return s
	}
	return "+41 " + d[0:2] + " " + d[2:5] + " " + d[5:7] + " " + d[7:9]
}

// Map applies the import rules to a confirmed extraction.
func Map(x Extraction) report.Import {
	clean := func(t report.Text) string { return report.Clean(string(t)) }

	owner, ownerStreet, ownerZip, ownerCity := SplitOwnerAddress(clean(x.Billing.Owner))

	imp := report.Import{
		ProjectTitle:    clean(x.Project.InternalID),
		LocationDetails: clean(x.Site.Apartment),
		DamageType:      clean(x.Assignment.ServiceType),
		Billing: report.Billing{
			Owner:        owner,
			InvoiceEmail: clean(x.Billing.InvoiceEmail),
			Reference:    clean(x.Billing.Note),
			OrderNumber:  clean(x.Project.OrderNumber),
			ExternalRef:  clean(x.Project.ExternalRef),
			Company:      clean(x.Assignment.Company),
			Manager:      clean(x.Assignment.Manager),
			ServiceType:  clean(x.Assignment.ServiceType),
		},
		Gaps: x.Gaps,
	}

	imp.Client = owner
	if imp.Client == "" {
		imp.Client = imp.Billing.Company
	}

	imp.Street = clean(x.Site.Street)
	imp.Zip, imp.City = SplitZipCity(clean(x.Site.ZipCity))
	if imp.Street == "" && imp.Zip == "" && imp.City == "" {
		imp.Street, imp.Zip, imp.City = ownerStreet, ownerZip, ownerCity
	}

	for _, c := range x.Contacts {
		contact := report.Contact{
			Name:  clean(c.Name),
			Role:  report.ParseRole(string(c.Role)),
			Phone: NormalizePhone(string(c.Phone)),
		}
		if contact.Blank() {
			continue
		}
		imp.Contacts = append(imp.Contacts, contact)
	}
	for len(imp.Contacts) < 4 {
		imp.Contacts = append(imp.Contacts, report.Contact{})
	}
	return imp
}
