package views

// GalleryPage is everything the public gallery page shows for one photo event.
type GalleryPage struct {
	SiteName  string
	Title     string
	EventType string
	Date      string // already formatted, e.g. "March 4, 2025"
	URL       string // canonical page URL, the one the QR code encodes
	QRCode    string // data URI
	Images    []GalleryImage
}

// GalleryImage is one captioned picture of a gallery.
type GalleryImage struct {
	URL     string
	Caption string
}
