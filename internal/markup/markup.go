package markup

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is a parsed capture of page markup.
type Snapshot struct {
	doc *goquery.Document
}

// Parse reads a captured markup string into a queryable snapshot.
func Parse(html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Snapshot{doc: doc}, nil
}

// Text returns the trimmed text content of the first element matching the
// selector, or "" when nothing matches.
func (s *Snapshot) Text(selector string) string {
	return strings.TrimSpace(s.doc.Find(selector).First().Text())
}

// Count returns the number of elements matching the selector.
func (s *Snapshot) Count(selector string) int {
	return s.doc.Find(selector).Length()
}

// Signatures returns a multiset of element signatures (tag, id, classes) for
// every element in the markup.
func Signatures(html string) (map[string]int, error) {
	snap, err := Parse(html)
	if err != nil {
		return nil, err
	}
	sigs := make(map[string]int)
	snap.doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		sigs[signature(sel)]++
	})
	return sigs, nil
}

// Superset reports whether the after markup retains at least the DOM nodes of
// the before markup. When it does not, the second return value lists the
// signatures that lost occurrences, sorted for stable diagnostics.
func Superset(before, after string) (bool, []string, error) {
	beforeSigs, err := Signatures(before)
	if err != nil {
		return false, nil, err
	}
	afterSigs, err := Signatures(after)
	if err != nil {
		return false, nil, err
	}
	var missing []string
	for sig, n := range beforeSigs {
		if afterSigs[sig] < n {
			missing = append(missing, sig)
		}
	}
	sort.Strings(missing)
	return len(missing) == 0, missing, nil
}

func signature(sel *goquery.Selection) string {
	var b strings.Builder
	b.WriteString(goquery.NodeName(sel))
	if id, ok := sel.Attr("id"); ok && id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	if class, ok := sel.Attr("class"); ok {
		names := strings.Fields(class)
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(".")
			b.WriteString(name)
		}
	}
	return b.String()
}
