package cmsengine

import (
	"time"

	"github.com/eringen/cmsengine/store"
	"github.com/eringen/cmsengine/upload"
)

// Slider is a homepage carousel entry.
type Slider struct {
	store.Meta `bson:",inline"`
	Title      string  `bson:"title" json:"title" validate:"required"`
	Subtitle   string  `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	ImageURL   string  `bson:"imageUrl" json:"imageUrl" validate:"required"`
	Link       string  `bson:"link,omitempty" json:"link,omitempty"`
	Order      float64 `bson:"order" json:"order"`
	IsActive   bool    `bson:"isActive" json:"isActive"`
}

// Press is a press release or media mention.
type Press struct {
	store.Meta `bson:",inline"`
	Title      string    `bson:"title" json:"title" validate:"required"`
	Date       time.Time `bson:"date" json:"date" validate:"required"`
	Thumbnail  string    `bson:"thumbnail" json:"thumbnail" validate:"required"`
	Content    string    `bson:"content" json:"content" validate:"required"`
	Source     string    `bson:"source,omitempty" json:"source,omitempty"`
	Author     string    `bson:"author,omitempty" json:"author,omitempty"`
	Tags       []string  `bson:"tags" json:"tags"`
	Link       string    `bson:"link" json:"link"`
	IsActive   bool      `bson:"isActive" json:"isActive"`
}

// Photo is a photo gallery for one event.
type Photo struct {
	store.Meta `bson:",inline"`
	Title      string         `bson:"title" json:"title" validate:"required"`
	Permalink  string         `bson:"permalink" json:"permalink" validate:"required"`
	EventType  string         `bson:"eventType" json:"eventType" validate:"required"`
	Date       time.Time      `bson:"date" json:"date" validate:"required"`
	Images     []upload.Image `bson:"images" json:"images" validate:"max=100,dive"`
	QRCode     string         `bson:"qr_code" json:"qr_code" validate:"required"`
}

// MaxImages is the most images a gallery may hold.
const MaxImages = 100

var (
	sliderSchema = store.Schema{Name: "sliders"}
	pressSchema  = store.Schema{Name: "press", TimeFields: []string{"date"}}
	photoSchema  = store.Schema{Name: "photos", Unique: []string{"permalink"}, TimeFields: []string{"date"}}
)

// pressView is the wire form of Press, with the date written out long-hand.
type pressView struct {
	Press
	Date string `json:"date"`
}

func newPressView(p Press) pressView {
	return pressView{Press: p, Date: FormatLongDate(p.Date)}
}

func pressViews(list []Press) []pressView {
	out := make([]pressView, 0, len(list))
	for _, p := range list {
		out = append(out, newPressView(p))
	}
	return out
}
