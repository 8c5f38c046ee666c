package assets

// Category is the bucket an asset is stored and routed under.
type Category string

const (
	CategoryImage Category = "image"
	CategoryCSS   Category = "css"
	CategoryJS    Category = "js"
	CategoryVideo Category = "video"
	CategoryFont  Category = "font"
	CategoryIcon  Category = "icon"
	CategoryOther Category = "other"
)

// Dir returns the bundle subdirectory a category's assets are written to.
func (c Category) Dir() string {
	switch c {
	case CategoryImage:
		return "images"
	case CategoryCSS:
		return "css"
	case CategoryJS:
		return "js"
	case CategoryVideo:
		return "videos"
	case CategoryFont:
		return "fonts"
	case CategoryIcon:
		return "icons"
	default:
		return "others"
	}
}

// AllCategories lists every category so callers can pre-create the bundle
// directory layout.
func AllCategories() []Category {
	return []Category{
		CategoryImage,
		CategoryCSS,
		CategoryJS,
		CategoryVideo,
		CategoryFont,
		CategoryIcon,
		CategoryOther,
	}
}
