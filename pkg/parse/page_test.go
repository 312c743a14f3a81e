package parse

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestParser() *Parser {
	return NewParser(DefaultSelectors(), testLogger())
}

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := NewDocument(body)
	require.NoError(t, err)
	return doc
}

func docFromString(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseAirline(t *testing.T) {
	p := newTestParser()
	doc := loadFixture(t, "airline_first_page.html")

	airline, ok := p.ParseAirline(doc)
	require.True(t, ok)
	assert.Equal(t, models.AirlineRecord{
		Name:        "Air Test",
		ImageURL:    "https://cdn.example.com/logos/air-test.png",
		ReviewCount: models.IntPtr(1234),
	}, airline)
}

func TestParseAirline_MissingOptionalParts(t *testing.T) {
	p := newTestParser()

	t.Run("non-numeric review count and no logo", func(t *testing.T) {
		doc := loadFixture(t, "airline_last_page.html")
		airline, ok := p.ParseAirline(doc)
		require.True(t, ok)
		assert.Equal(t, "Air Test", airline.Name)
		assert.Equal(t, "", airline.ImageURL)
		assert.Nil(t, airline.ReviewCount)
	})

	t.Run("no heading", func(t *testing.T) {
		doc := docFromString(t, `<html><body><div class="review-info"></div></body></html>`)
		_, ok := p.ParseAirline(doc)
		assert.False(t, ok)
	})
}

func TestParseReviews_FullFragment(t *testing.T) {
	p := newTestParser()
	doc := loadFixture(t, "airline_first_page.html")

	reviews := p.ParseReviews(doc, "Air Test")
	require.Len(t, reviews, 2)

	assert.Equal(t, models.ReviewRecord{
		ReviewID:              "891234",
		Title:                 `"a really comfortable flight"`,
		Content:               "Good flight, friendly crew.",
		VerifiedType:          "Trip Verified",
		AirlineName:           "Air Test",
		UserName:              "Jane Doe",
		Country:               "Canada",
		DateReview:            models.StringPtr("2024-03-14"),
		Aircraft:              "A320",
		TypeOfTraveller:       "Solo Leisure",
		SeatType:              "Economy Class",
		Route:                 "Toronto to Vancouver",
		DateFlown:             "March 2024",
		Score:                 models.IntPtr(8),
		SeatComfort:           models.IntPtr(4),
		CabinStaffService:     models.IntPtr(5),
		FoodBeverages:         models.IntPtr(0),
		InflightEntertainment: nil,
		GroundService:         models.IntPtr(2),
		WifiConnectivity:      models.IntPtr(1),
		ValueForMoney:         models.IntPtr(3),
		Recommended:           "yes",
	}, reviews[0])
}

func TestParseReviews_LegacyFragment(t *testing.T) {
	p := newTestParser()
	doc := loadFixture(t, "airline_first_page.html")

	reviews := p.ParseReviews(doc, "Air Test")
	require.Len(t, reviews, 2)
	legacy := reviews[1]

	assert.Equal(t, "", legacy.ReviewID)
	assert.Equal(t, "Legacy review", legacy.Title)
	assert.Equal(t, "J. Smith", legacy.UserName)
	assert.Equal(t, "", legacy.Country)
	assert.Nil(t, legacy.DateReview)
	assert.Nil(t, legacy.Score, "N/A score must be nil, not 0")
	assert.Equal(t, "", legacy.VerifiedType)
	assert.Equal(t, "Just a plain review", legacy.Content)
	assert.Nil(t, legacy.CabinStaffService, "row without a value cell must be skipped")
	assert.Equal(t, "no", legacy.Recommended)
	assert.Equal(t, "Air Test", legacy.AirlineName)
}

func TestParseReviews_StarRatingsStayInRange(t *testing.T) {
	p := newTestParser()
	html := `<article class="review-7" itemprop="review"><table class="review-ratings">
<tr><td>Seat Comfort</td><td class="review-rating-stars">` +
		strings.Repeat(`<span class="star fill"></span>`, 7) + `</td></tr>
<tr><td>Ground Service</td><td class="review-value">9</td></tr>
</table></article>`

	reviews := p.ParseReviews(docFromString(t, html), "X")
	require.Len(t, reviews, 1)
	require.NotNil(t, reviews[0].SeatComfort)
	assert.Equal(t, 5, *reviews[0].SeatComfort)
	assert.Nil(t, reviews[0].GroundService)
}

func TestParseReviews_EmptyDatetimeIsNil(t *testing.T) {
	p := newTestParser()
	html := `<article class="review-8" itemprop="review"><time itemprop="datePublished" datetime=""></time></article>`
	reviews := p.ParseReviews(docFromString(t, html), "X")
	require.Len(t, reviews, 1)
	assert.Nil(t, reviews[0].DateReview)
	assert.Equal(t, "8", reviews[0].ReviewID)
}

func TestParseReviews_NoFragments(t *testing.T) {
	p := newTestParser()
	reviews := p.ParseReviews(docFromString(t, `<html><body><p>nothing</p></body></html>`), "X")
	assert.Empty(t, reviews)
}

func TestParseReview_UnknownLabelIsDropped(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	hook := &captureHook{}
	log.AddHook(hook)
	p := NewParser(DefaultSelectors(), logrus.NewEntry(log))

	html := `<article class="review-9" itemprop="review"><table class="review-ratings">
<tr><td>Lounge Access</td><td class="review-value">Yes</td></tr>
</table></article>`
	doc := docFromString(t, html)
	rec := p.ParseReview(doc.Find(`article[itemprop="review"]`).First())

	assert.Equal(t, models.ReviewRecord{ReviewID: "9"}, rec)
	require.Len(t, hook.entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.entries[0].Level, "dropped rows must be visible at the default level")
	assert.Equal(t, "Lounge Access", hook.entries[0].Data["label"])
	assert.Equal(t, "9", hook.entries[0].Data["review_id"])
}

func TestParseReview_MultilineTextIsSquashed(t *testing.T) {
	p := newTestParser()
	html := `<article class="review-77" itemprop="review">
<h2 class="text_header">"Smooth
    ride"</h2>
<div class="text_content" itemprop="reviewBody"><strong><em>Trip Verified</em></strong> |
   Good flight,
   friendly    crew.</div>
<table class="review-ratings">
<tr><td class="review-rating-header">Type Of
  Traveller</td><td class="review-value">Solo
  Leisure</td></tr>
<tr><td class="review-rating-header">Seat
 Comfort</td><td class="review-value">4</td></tr>
</table></article>`
	doc := docFromString(t, html)
	rec := p.ParseReview(doc.Find(`article[itemprop="review"]`).First())

	assert.Equal(t, "77", rec.ReviewID)
	assert.Equal(t, `"Smooth ride"`, rec.Title)
	assert.Equal(t, "Trip Verified", rec.VerifiedType)
	assert.Equal(t, "Good flight, friendly crew.", rec.Content)
	assert.Equal(t, "Solo Leisure", rec.TypeOfTraveller)
	assert.Equal(t, models.IntPtr(4), rec.SeatComfort)
}

func TestParseAirline_MultilineHeading(t *testing.T) {
	p := newTestParser()
	html := `<div class="review-info"><h1 itemprop="name">
  Air
  Test
</h1></div>`
	rec, ok := p.ParseAirline(docFromString(t, html))
	require.True(t, ok)
	assert.Equal(t, "Air Test", rec.Name)
}

func TestFindNextPage(t *testing.T) {
	p := newTestParser()
	pageURL := mustURL(t, "https://www.example.com/airline-reviews/air-test")

	next, ok := p.FindNextPage(loadFixture(t, "airline_first_page.html"), pageURL)
	assert.True(t, ok)
	assert.Equal(t, "https://www.example.com/airline-reviews/air-test/page/2/", next)

	next, ok = p.FindNextPage(loadFixture(t, "airline_last_page.html"), pageURL)
	assert.False(t, ok)
	assert.Equal(t, "", next)
}

func TestFindNextPage_IgnoresBrokenNextLink(t *testing.T) {
	p := newTestParser()
	html := `<article class="querylist-pagination"><ul>
<li><a>&gt;&gt;</a></li>
<li><a href="mailto:x@example.com">&gt;&gt;</a></li>
<li><a href="?page=4"> &gt;&gt; </a></li>
</ul></article>`
	next, ok := p.FindNextPage(docFromString(t, html), mustURL(t, "https://www.example.com/reviews?page=3"))
	assert.True(t, ok)
	assert.Equal(t, "https://www.example.com/reviews?page=4", next)
}

func TestDiscoverAirlineURLs(t *testing.T) {
	p := newTestParser()
	doc := loadFixture(t, "index.html")
	base := mustURL(t, "https://www.example.com/review-pages/a-z-airline-reviews/")

	entries := p.DiscoverAirlineURLs(doc, base)
	assert.Equal(t, []string{
		"https://www.example.com/airline-reviews/air-test",
		"https://www.example.com/airline-reviews/aero-sample",
		"https://www.example.com/airline-reviews/blue-demo",
	}, entries)
}

func TestDiscoverAirlineURLs_CustomMarker(t *testing.T) {
	sel := DefaultSelectors().WithDiscovery("", "lounge-reviews")
	p := NewParser(sel, testLogger())
	base := mustURL(t, "https://www.example.com/")

	entries := p.DiscoverAirlineURLs(loadFixture(t, "index.html"), base)
	assert.Equal(t, []string{"https://www.example.com/lounge-reviews/air-test-lounge"}, entries)
}

type captureHook struct {
	entries []*logrus.Entry
}

func (h *captureHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *captureHook) Fire(e *logrus.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}
