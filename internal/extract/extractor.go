// Package extract turns the server-rendered salary rankings page into raw
// player records.
//
// The page has no documented contract. Selectors are configurable so that
// ordinary markup drift can be absorbed without a code change.
package extract

import (
	"fmt"
	"iter"
	"strings"

	"nba_salaries/ingestion/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locates the pieces of a ranked entry
type Selectors struct {
	List   string // the single list holding ranked entries
	Item   string // one entry inside List
	Link   string // player link inside Item; text is the name, href ends in the player id
	Team   string // small text whose first three characters are the team code
	Salary string // salary text inside Item
}

// DefaultSelectors matches the rankings page as currently served
func DefaultSelectors() Selectors {
	return Selectors{
		List:   "main ul.list-group",
		Item:   "li.list-group-item",
		Link:   "a",
		Team:   "small",
		Salary: "span.medium",
	}
}

// ExtractionError reports a structural assumption about the markup that does
// not hold. Index is -1 for page-level failures.
type ExtractionError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("extraction failed (%s): %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("extraction failed for item %d (%s): %s", e.Index, e.Field, e.Reason)
}

// Extractor parses rankings markup
type Extractor struct {
	sel Selectors
}

// New creates an extractor. Empty selector fields fall back to the defaults.
func New(sel Selectors) *Extractor {
	def := DefaultSelectors()
	if sel.List == "" {
		sel.List = def.List
	}
	if sel.Item == "" {
		sel.Item = def.Item
	}
	if sel.Link == "" {
		sel.Link = def.Link
	}
	if sel.Team == "" {
		sel.Team = def.Team
	}
	if sel.Salary == "" {
		sel.Salary = def.Salary
	}
	return &Extractor{sel: sel}
}

// Extract parses markup and returns the ranked entries in document order.
//
// The sequence is lazy and single-pass: records are built while it is ranged
// over, and ranging a second time yields nothing. Items without a player link
// are skipped. A malformed item is yielded as an *ExtractionError and the
// caller decides whether to continue.
func (e *Extractor) Extract(markup string) (iter.Seq2[models.RawPlayerRecord, error], error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ExtractionError{Index: -1, Field: "document", Reason: err.Error()}
	}

	list := doc.Find(e.sel.List).First()
	if list.Length() == 0 {
		return nil, &ExtractionError{
			Index:  -1,
			Field:  "list",
			Reason: fmt.Sprintf("no element matches %q", e.sel.List),
		}
	}

	items := list.Find(e.sel.Item)
	consumed := false

	return func(yield func(models.RawPlayerRecord, error) bool) {
		if consumed {
			return
		}
		consumed = true

		for i := range items.Nodes {
			item := items.Eq(i)

			link := item.Find(e.sel.Link).First()
			if link.Length() == 0 {
				// section headers and ads carry no player link
				continue
			}

			rec, err := e.record(i, item, link)
			if !yield(rec, err) {
				return
			}
		}
	}, nil
}

func (e *Extractor) record(index int, item, link *goquery.Selection) (models.RawPlayerRecord, error) {
	name := collapseSpace(link.Text())
	if name == "" {
		return models.RawPlayerRecord{}, &ExtractionError{Index: index, Field: "name", Reason: "player link has no text"}
	}

	href, ok := link.Attr("href")
	if !ok {
		return models.RawPlayerRecord{}, &ExtractionError{Index: index, Field: "external_id", Reason: "player link has no href"}
	}
	externalID, err := LastPathSegment(href)
	if err != nil {
		return models.RawPlayerRecord{}, &ExtractionError{Index: index, Field: "external_id", Reason: err.Error()}
	}

	team := item.Find(e.sel.Team).First()
	if team.Length() == 0 {
		return models.RawPlayerRecord{}, &ExtractionError{
			Index:  index,
			Field:  "team_code",
			Reason: fmt.Sprintf("no element matches %q", e.sel.Team),
		}
	}

	salary := item.Find(e.sel.Salary).First()
	if salary.Length() == 0 {
		return models.RawPlayerRecord{}, &ExtractionError{
			Index:  index,
			Field:  "salary",
			Reason: fmt.Sprintf("no element matches %q", e.sel.Salary),
		}
	}

	return models.RawPlayerRecord{
		ExternalID: externalID,
		Name:       name,
		TeamCode:   firstRunes(strings.TrimSpace(team.Text()), 3),
		SalaryRaw:  strings.TrimSpace(salary.Text()),
	}, nil
}

// LastPathSegment returns the part of href after its final '/'.
// Query strings, fragments and trailing slashes are ignored.
func LastPathSegment(href string) (string, error) {
	path := href
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")

	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", fmt.Errorf("no path separator in %q", href)
	}

	segment := strings.TrimSpace(path[i+1:])
	if segment == "" {
		return "", fmt.Errorf("empty final path segment in %q", href)
	}
	return segment, nil
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
