package scraper

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/scrape"
)

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// cardSelectors match elements that usually hold one person on team pages.
const cardSelectors = `[class*="team-member"], [class*="member"], [class*="person"], [class*="staff"], ` +
	`[class*="leader"], [class*="bio"], [class*="profile"], [itemtype*="schema.org/Person"]`

const nameSelectors = `[itemprop="name"], .name, h2, h3, h4, h5, strong`

const titleSelectors = `[itemprop="jobTitle"], .title, .position, .role, .job-title`

// extractContacts pulls people from a fetched page. Structured HTML cards are
// read first, then mailto links, then bare addresses in the text. Results are
// unique by email, else by name.
func extractContacts(page scrape.Page, company string) []model.Contact {
	ex := &contactSet{company: company, byKey: map[string]int{}}

	if page.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML)); err == nil {
			ex.fromCards(doc)
			ex.fromMailto(doc)
		}
	}
	ex.fromText(page.Text)
	return ex.out
}

type contactSet struct {
	company string
	out     []model.Contact
	byKey   map[string]int
}

func (s *contactSet) add(c model.Contact) {
	c.Company = s.company
	keys := []string{}
	if c.Email != "" {
		keys = append(keys, "e:"+strings.ToLower(c.Email))
	}
	if c.Name != "" {
		keys = append(keys, "n:"+strings.ToLower(c.Name))
	}
	for _, k := range keys {
		if i, ok := s.byKey[k]; ok {
			mergeContact(&s.out[i], c)
			for _, k2 := range keys {
				s.byKey[k2] = i
			}
			return
		}
	}
	s.out = append(s.out, c)
	for _, k := range keys {
		s.byKey[k] = len(s.out) - 1
	}
}

// mergeContact fills empty fields of dst from src.
func mergeContact(dst *model.Contact, src model.Contact) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.LinkedInURL == "" {
		dst.LinkedInURL = src.LinkedInURL
	}
}

func (s *contactSet) fromCards(doc *goquery.Document) {
	doc.Find(cardSelectors).Each(func(_ int, card *goquery.Selection) {
		// Skip wrappers that contain several cards.
		if card.Find(cardSelectors).Length() > 0 {
			return
		}
		name := ""
		card.Find(nameSelectors).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			if t := cleanText(n.Text()); looksLikeName(t) {
				name = t
				return false
			}
			return true
		})
		if name == "" {
			return
		}

		c := model.Contact{Name: name}
		c.Title = cleanText(card.Find(titleSelectors).First().Text())
		if c.Title == "" {
			card.Find("p, span").EachWithBreak(func(_ int, p *goquery.Selection) bool {
				t := cleanText(p.Text())
				if t != "" && t != name && len(t) <= 80 && !strings.Contains(t, "@") {
					c.Title = t
					return false
				}
				return true
			})
		}
		if href, ok := card.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			c.Email = mailtoAddress(href)
		}
		if href, ok := card.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			c.Phone = strings.TrimPrefix(href, "tel:")
		}
		if href, ok := card.Find(`a[href*="linkedin.com/in/"]`).First().Attr("href"); ok {
			c.LinkedInURL = href
		}
		s.add(c)
	})
}

func (s *contactSet) fromMailto(doc *goquery.Document) {
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, a *goquery.Selection) {
		addr := mailtoAddress(a.AttrOr("href", ""))
		if addr == "" {
			return
		}
		name := cleanText(a.Text())
		if !looksLikeName(name) {
			name = nameFromEmail(addr)
		}
		if name == "" {
			return
		}
		s.add(model.Contact{Name: name, Email: addr})
	})
}

func (s *contactSet) fromText(text string) {
	for _, addr := range emailRe.FindAllString(text, -1) {
		addr = strings.TrimRight(addr, ".")
		if _, seen := s.byKey["e:"+strings.ToLower(addr)]; seen {
			continue
		}
		if name := nameFromEmail(addr); name != "" {
			s.add(model.Contact{Name: name, Email: addr})
		}
	}
}

func mailtoAddress(href string) string {
	addr := strings.TrimPrefix(strings.TrimSpace(href), "mailto:")
	addr, _, _ = strings.Cut(addr, "?")
	if unescaped, err := url.PathUnescape(addr); err == nil {
		addr = unescaped
	}
	if !emailRe.MatchString(addr) {
		return ""
	}
	return addr
}

// looksLikeName accepts 2 to 4 capitalized words of letters, apostrophes,
// hyphens, or periods.
func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 || len(s) > 40 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
		for _, c := range r {
			if !unicode.IsLetter(c) && c != '\'' && c != '-' && c != '.' {
				return false
			}
		}
	}
	return true
}

// nameFromEmail turns "jane.doe@acme.com" into "Jane Doe". Local parts that
// are not two alphabetic words yield "".
func nameFromEmail(addr string) string {
	local, _, ok := strings.Cut(addr, "@")
	if !ok {
		return ""
	}
	parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	if len(parts) != 2 {
		return ""
	}
	for i, p := range parts {
		if len(p) < 2 {
			return ""
		}
		for _, c := range p {
			if !unicode.IsLetter(c) {
				return ""
			}
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return parts[0] + " " + parts[1]
}
