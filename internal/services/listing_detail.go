package services

import (
	"errors"
	"strings"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	placePaneSelector = `div[role="main"][aria-label]`
	headingSelector   = `h1`
	addressSelector   = `button[data-item-id="address"]`
	phoneSelector     = `button[data-item-id^="phone:tel:"]`
	websiteSelector   = `a[data-item-id="authority"]`
)

// ErrDetailNotRendered is returned when a snapshot holds no place pane to read a name from.
var ErrDetailNotRendered = errors.New("place detail view not rendered")

var quoteStripper = strings.NewReplacer(`"`, "", "“", "", "”", "")

// ParseListingDetail reads the raw listing fields out of a detail view snapshot. The permalink is
// supplied by the caller because the detail view no longer exposes the result link it was opened from.
func ParseListingDetail(htmlContent, mapsLink string) (models.RawListing, error) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return models.RawListing{}, err
	}
	doc := goquery.NewDocumentFromNode(root)

	name, ok := placeName(doc)
	if !ok {
		return models.RawListing{}, ErrDetailNotRendered
	}

	listing := models.RawListing{
		ClinicName: name,
		MapsLink:   mapsLink,
		Address:    lastLineOf(doc.Find(addressSelector)),
		// The phone button renders an icon glyph line before the number.
		PhoneNumber: lastLineOf(doc.Find(phoneSelector)),
	}

	if href, exists := doc.Find(websiteSelector).First().Attr("href"); exists {
		listing.Website = strings.TrimSpace(href)
	}

	return listing, nil
}

// placeName prefers the labelled place pane; the results feed is also a labelled main region but
// precedes the detail pane in the document, so the last match wins.
func placeName(doc *goquery.Document) (string, bool) {
	if pane := doc.Find(placePaneSelector).Last(); pane.Length() > 0 {
		label := common.GetAttribute(pane.Get(0), "aria-label")
		return cleanPlaceName(label), true
	}
	if heading := doc.Find(headingSelector).First(); heading.Length() > 0 {
		return cleanPlaceName(heading.Text()), true
	}
	return "", false
}

func cleanPlaceName(name string) string {
	return strings.TrimSpace(quoteStripper.Replace(name))
}

func lastLineOf(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return common.LastTextLine(sel.Get(0))
}
