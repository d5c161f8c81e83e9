package upload

// Image is one stored gallery image.
type Image struct {
	URL     string `bson:"url" json:"url" validate:"required"`
	Caption string `bson:"caption" json:"caption"`
}

type captionMode int

const (
	captionsAbsent captionMode = iota
	captionSingle
	captionList
)

// Captions is the caption input sent with a batch of images: absent, one
// caption for every image, or one caption per image by position.
type Captions struct {
	mode   captionMode
	values []string
}

// NoCaptions leaves every image uncaptioned.
func NoCaptions() Captions { return Captions{} }

// SingleCaption applies s to every image.
func SingleCaption(s string) Captions {
	return Captions{mode: captionSingle, values: []string{s}}
}

// CaptionList captions images by position.
func CaptionList(list []string) Captions {
	return Captions{mode: captionList, values: list}
}

// For returns the caption of the i-th image.
func (c Captions) For(i int) string {
	switch c.mode {
	case captionSingle:
		return c.values[0]
	case captionList:
		if i >= 0 && i < len(c.values) {
			return c.values[i]
		}
	}
	return ""
}

// BindImages pairs files with their captions in upload order.
func BindImages(files []*File, captions Captions) []Image {
	images := make([]Image, 0, len(files))
	for i, f := range files {
		images = append(images, Image{URL: f.WebPath, Caption: captions.For(i)})
	}
	return images
}

// MergeImages applies the update policy for image lists. When the caller
// sent an explicit list of kept images, new uploads are appended to it.
// Otherwise new uploads replace the current list, and with no uploads the
// current list stays as it is.
func MergeImages(current []Image, existing []Image, sentExisting bool, added []Image) []Image {
	switch {
	case sentExisting:
		out := make([]Image, 0, len(existing)+len(added))
		out = append(out, existing...)
		return append(out, added...)
	case len(added) > 0:
		return added
	default:
		return current
	}
}

// WebPaths returns the URLs of images.
func WebPaths(images []Image) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, img.URL)
	}
	return out
}
