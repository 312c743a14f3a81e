// Package parse extracts airline profiles, reviews and navigation links from
// fetched review site pages.
package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/normalize"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Parser interprets fetched documents. It holds no per-page state and is safe
// for concurrent use by crawl workers.
type Parser struct {
	sel Selectors
	log *logrus.Entry
}

// NewParser creates a Parser using the given selectors
func NewParser(sel Selectors, log *logrus.Entry) *Parser {
	return &Parser{sel: sel, log: log.WithField("component", "parser")}
}

// Selectors returns the selectors in use
func (p *Parser) Selectors() Selectors {
	return p.sel
}

// NewDocument parses raw HTML into a goquery document
func NewDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// ParseAirline extracts the airline profile from a first page. The returned
// bool is false when the page has no airline heading.
func (p *Parser) ParseAirline(doc *goquery.Document) (models.AirlineRecord, bool) {
	name := p.AirlineName(doc)
	if name == "" {
		return models.AirlineRecord{}, false
	}
	img, _ := doc.Find(p.sel.AirlineImage).First().Attr("src")
	countText := normalize.SquashSpace(doc.Find(p.sel.AirlineReviewCount).First().Text())

	return models.AirlineRecord{
		Name:        name,
		ImageURL:    strings.TrimSpace(img),
		ReviewCount: normalize.ParseDigits(countText),
	}, true
}

// AirlineName returns the whitespace-squashed airline heading of any page in a chain
func (p *Parser) AirlineName(doc *goquery.Document) string {
	return normalize.SquashSpace(doc.Find(p.sel.AirlineName).First().Text())
}

// ParseReviews extracts every review fragment on the page, stamping each
// record with airlineName.
func (p *Parser) ParseReviews(doc *goquery.Document, airlineName string) []models.ReviewRecord {
	fragments := doc.Find(p.sel.ReviewFragment)
	reviews := make([]models.ReviewRecord, 0, fragments.Length())
	fragments.Each(func(_ int, block *goquery.Selection) {
		rec := p.ParseReview(block)
		rec.AirlineName = airlineName
		reviews = append(reviews, rec)
	})
	return reviews
}

// ParseReview extracts a single review fragment. Missing elements default to
// "" or nil; nothing here fails.
func (p *Parser) ParseReview(block *goquery.Selection) models.ReviewRecord {
	var rec models.ReviewRecord

	classAttr, _ := block.Attr("class")
	rec.ReviewID = normalize.ExtractReviewID(classAttr)

	rec.Title = normalize.SquashSpace(block.Find(p.sel.ReviewTitle).First().Text())
	rec.UserName = normalize.SquashSpace(block.Find(p.sel.ReviewAuthor).First().Text())

	if datetime, ok := block.Find(p.sel.ReviewDate).First().Attr("datetime"); ok {
		rec.DateReview = normalize.OptionalString(datetime)
	}

	rec.Score = normalize.ParseScore(block.Find(p.sel.ReviewScore).First().Text())
	rec.Country = normalize.ExtractCountry(normalize.SquashSpace(block.Find(p.sel.ReviewSubHead).First().Text()))
	rec.VerifiedType, rec.Content = normalize.SplitVerified(block.Find(p.sel.ReviewBody).First().Text())

	block.Find(p.sel.RatingRows).Each(func(_ int, row *goquery.Selection) {
		p.applyRatingRow(&rec, row)
	})

	return rec
}

// applyRatingRow maps one label/value row of the rating sub-table onto rec
func (p *Parser) applyRatingRow(rec *models.ReviewRecord, row *goquery.Selection) {
	cells := row.Find("td")
	if cells.Length() < 2 {
		return
	}
	rawLabel := normalize.SquashSpace(cells.Eq(0).Text())
	valueCell := cells.Eq(1)

	var value normalize.RawValue
	if valueCell.HasClass(p.sel.StarWidget) {
		value = normalize.StarValue(valueCell.Find(p.sel.FilledStar).Length())
	} else {
		value = normalize.TextValue(normalize.SquashSpace(valueCell.Text()))
	}

	label, known := normalize.LookupLabel(rawLabel)
	if !known {
		p.log.WithFields(logrus.Fields{
			"review_id": rec.ReviewID,
			"label":     rawLabel,
		}).Warn("Dropping rating row with unknown label")
		return
	}
	normalize.Apply(rec, label, value)
}

// FindNextPage returns the absolute URL of the page's "next" pagination link.
// ok is false when the page is the last one in its chain.
func (p *Parser) FindNextPage(doc *goquery.Document, pageURL *url.URL) (next string, ok bool) {
	doc.Find(p.sel.PaginationLinks).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if normalize.SquashSpace(a.Text()) != p.sel.NextLabel {
			return true
		}
		href, exists := a.Attr("href")
		if !exists {
			return true
		}
		resolved, err := ResolveHref(pageURL, href)
		if err != nil {
			p.log.WithField("href", href).Debugf("Ignoring unusable next link: %v", err)
			return true
		}
		next, ok = resolved.String(), true
		return false
	})
	return next, ok
}

// DiscoverAirlineURLs scans the index page for airline entry links and returns
// their absolute URLs, deduplicated by normalized form, in document order.
func (p *Parser) DiscoverAirlineURLs(doc *goquery.Document, pageURL *url.URL) []string {
	seen := make(map[string]bool)
	var entries []string
	doc.Find(p.sel.IndexLinks).Each(func(_ int, a *goquery.Selection) {
		href, exists := a.Attr("href")
		if !exists || !strings.Contains(href, p.sel.EntryMarker) {
			return
		}
		resolved, err := ResolveHref(pageURL, href)
		if err != nil {
			p.log.WithField("href", href).Debugf("Skipping invalid entry link: %v", err)
			return
		}
		key := NormalizeURL(resolved)
		if seen[key] {
			return
		}
		seen[key] = true
		entries = append(entries, resolved.String())
	})
	return entries
}
