package cmsengine

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

// renderRSS writes a feed of gallery pages, newest event first.
func (a *App) renderRSS(c echo.Context, photos []Photo) error {
	base := a.Config.GalleryBaseURL
	items := make([]rssItem, 0, len(photos))
	for _, p := range photos {
		pubDate := ""
		if !p.Date.IsZero() {
			pubDate = p.Date.UTC().Format(time.RFC1123Z)
		}
		pageURL := a.galleryURL(p.Permalink)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        pageURL,
			Description: fmt.Sprintf("%s, %s: %d photos", p.EventType, FormatLongDate(p.Date), len(p.Images)),
			PubDate:     pubDate,
			GUID:        pageURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.SiteName,
			Link:        base,
			Description: a.Config.SiteName + " photo galleries",
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
