package parse

// Selectors locates each piece of a review site page. The defaults match the
// markup of the A-Z airline review site; only the index discovery selectors
// are exposed through configuration.
type Selectors struct {
	IndexLinks  string // Anchors on the index page that may lead to airlines
	EntryMarker string // Substring an index href must contain to be an airline entry

	AirlineName        string
	AirlineImage       string
	AirlineReviewCount string

	ReviewFragment string
	ReviewTitle    string
	ReviewAuthor   string
	ReviewDate     string
	ReviewScore    string
	ReviewSubHead  string
	ReviewBody     string
	RatingRows     string
	StarWidget     string // Class on the value cell marking a star widget
	FilledStar     string

	PaginationLinks string
	NextLabel       string // Visible text of the "next page" link
}

// DefaultSelectors returns the selectors for the review site's current markup
func DefaultSelectors() Selectors {
	return Selectors{
		IndexLinks:  `div[id^="a2z-ldr-"] ul li a`,
		EntryMarker: "airline-reviews",

		AirlineName:        `div.review-info h1[itemprop="name"]`,
		AirlineImage:       `div.review-info div.logo img`,
		AirlineReviewCount: `div.review-info div.review-count span[itemprop="reviewCount"]`,

		ReviewFragment: `article[itemprop="review"]`,
		ReviewTitle:    `h2.text_header`,
		ReviewAuthor:   `span[itemprop="name"]`,
		ReviewDate:     `time[itemprop="datePublished"]`,
		ReviewScore:    `div.rating-10 span[itemprop="ratingValue"]`,
		ReviewSubHead:  `h3.text_sub_header`,
		ReviewBody:     `div.text_content[itemprop="reviewBody"]`,
		RatingRows:     `table.review-ratings tr`,
		StarWidget:     "review-rating-stars",
		FilledStar:     `span.star.fill`,

		PaginationLinks: `article.querylist-pagination ul li a`,
		NextLabel:       ">>",
	}
}

// WithDiscovery overrides the index discovery selectors when non-empty
func (s Selectors) WithDiscovery(indexLinks, entryMarker string) Selectors {
	if indexLinks != "" {
		s.IndexLinks = indexLinks
	}
	if entryMarker != "" {
		s.EntryMarker = entryMarker
	}
	return s
}
