package assets

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// extensionTable maps lowercased file extensions to their category.
// Icon extensions overlap with images; Classify resolves the overlap in
// favor of icons only when the element context says so (link-icon tags).
var extensionTable = map[string]Category{
	".jpg":   CategoryImage,
	".jpeg":  CategoryImage,
	".png":   CategoryImage,
	".gif":   CategoryImage,
	".webp":  CategoryImage,
	".svg":   CategoryImage,
	".css":   CategoryCSS,
	".js":    CategoryJS,
	".mp4":   CategoryVideo,
	".webm":  CategoryVideo,
	".ogg":   CategoryVideo,
	".woff":  CategoryFont,
	".woff2": CategoryFont,
	".ttf":   CategoryFont,
	".eot":   CategoryFont,
	".otf":   CategoryFont,
	".ico":   CategoryIcon,
}

// Classifier maps URLs and content types onto asset categories. The zero
// value is usable; the struct exists so the classifier can be handed around
// as a collaborator the way other pipeline components are.
type Classifier struct{}

// NewClassifier creates a new asset classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the category for a canonical URL. Evidence order:
// URL path extension, then MIME inference from the content type, then MIME
// family fallback. It is total: unknown inputs classify as CategoryOther.
func (c *Classifier) Classify(canonicalURL, contentType string) Category {
	if ext := extensionOfURL(canonicalURL); ext != "" {
		if cat, ok := extensionTable[ext]; ok {
			return cat
		}
	}

	return classifyContentType(contentType)
}

// ClassifyIcon behaves like Classify but prefers the icon category for
// image-like assets, used when the referencing element is a link-icon tag.
func (c *Classifier) ClassifyIcon(canonicalURL, contentType string) Category {
	cat := c.Classify(canonicalURL, contentType)
	if cat == CategoryImage {
		return CategoryIcon
	}
	return cat
}

// Extension picks the file extension for a stored asset: the URL's own
// extension when present, otherwise one inferred from the content type,
// otherwise a category-family default. Always returns a non-empty value.
func (c *Classifier) Extension(canonicalURL, contentType string) string {
	if ext := extensionOfURL(canonicalURL); ext != "" {
		return ext
	}

	mediaType := normalizeMediaType(contentType)
	if mediaType != "" {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return strings.ToLower(exts[0])
		}
	}

	switch {
	case strings.Contains(mediaType, "image"):
		return ".jpg"
	case strings.Contains(mediaType, "video"):
		return ".mp4"
	case strings.Contains(mediaType, "javascript"):
		return ".js"
	case strings.Contains(mediaType, "css"):
		return ".css"
	case strings.Contains(mediaType, "font"):
		return ".woff2"
	}

	return ".bin"
}

// classifyContentType maps a MIME type to a category by family.
func classifyContentType(contentType string) Category {
	mediaType := normalizeMediaType(contentType)
	if mediaType == "" {
		return CategoryOther
	}

	switch {
	case strings.Contains(mediaType, "css"):
		return CategoryCSS
	case strings.Contains(mediaType, "javascript"):
		return CategoryJS
	case strings.HasPrefix(mediaType, "image/"):
		return CategoryImage
	case strings.HasPrefix(mediaType, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mediaType, "font/"), strings.Contains(mediaType, "font-"):
		return CategoryFont
	}

	return CategoryOther
}

// extensionOfURL extracts the lowercased extension of the URL path,
// ignoring query parameters and fragments.
func extensionOfURL(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return strings.ToLower(path.Ext(canonicalURL))
	}
	return strings.ToLower(path.Ext(u.Path))
}

// normalizeMediaType strips parameters like charset from a content type.
func normalizeMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}
