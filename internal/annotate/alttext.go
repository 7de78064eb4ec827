package annotate

import (
	"image/color"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anthonynsimon/bild/transform"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/runes"
	xtransform "golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
)

const (
	// AnalysisWidth is the width of the thumbnail the pixel analysis runs on.
	AnalysisWidth = 100

	// MaxAnalysisHeight caps the thumbnail height for very tall sources.
	MaxAnalysisHeight = 1000

	// MaxAltTextLength is the longest ALT text Describe produces.
	MaxAltTextLength = 125
)

// Annotation is a best-effort description of an image, carried alongside
// it rather than attached to it.
type Annotation struct {
	AltText       string  `json:"alt_text" yaml:"alt_text"`
	SuggestedName string  `json:"suggested_name" yaml:"suggested_name"`
	Category      string  `json:"category,omitempty" yaml:"category,omitempty"`
	Tone          string  `json:"tone,omitempty" yaml:"tone,omitempty"`
	ColorName     string  `json:"color_name,omitempty" yaml:"color_name,omitempty"`
	Vibrant       bool    `json:"vibrant" yaml:"vibrant"`
	Brightness    float64 `json:"brightness" yaml:"brightness"`
	AverageHex    string  `json:"average_hex,omitempty" yaml:"average_hex,omitempty"`
}

// category maps file name keywords to the subject used in ALT text.
// Categories are tried in order; the first with a keyword contained in the
// lowercased name wins.
type category struct {
	name     string
	subject  string
	keywords []string
}

var categories = []category{
	{"portrait", "portrait showing a person", []string{"portrait", "headshot", "profile", "person", "people", "face", "selfie", "man", "woman", "child", "girl", "boy"}},
	{"landscape", "scenic landscape view", []string{"landscape", "scenery", "nature", "outdoor", "view", "mountain", "beach", "sunset", "sunrise", "forest", "ocean", "sky", "clouds"}},
	{"product", "product display", []string{"product", "item", "goods", "merchandise", "catalog", "ecommerce", "package", "box"}},
	{"logo", "company brand logo", []string{"logo", "brand", "icon", "symbol", "emblem", "badge", "banner"}},
	{"screenshot", "digital interface screenshot", []string{"screenshot", "screen", "capture", "snapshot", "desktop", "ui", "interface"}},
	{"photo", "photograph", []string{"photo", "pic", "picture", "img", "image", "photograph", "camera"}},
	{"food", "prepared food dish", []string{"food", "meal", "dish", "recipe", "cooking", "restaurant", "cuisine", "breakfast", "lunch", "dinner", "cake", "fruit"}},
	{"building", "architectural building", []string{"building", "house", "architecture", "structure", "construction", "home", "office", "city", "street"}},
	{"animal", "animal wildlife", []string{"dog", "cat", "pet", "animal", "bird", "wildlife", "puppy", "kitten", "lion", "tiger", "horse"}},
	{"vehicle", "transportation vehicle", []string{"car", "vehicle", "truck", "bike", "motorcycle", "automobile", "plane", "boat", "ship", "bus"}},
	{"document", "written document page", []string{"document", "doc", "file", "page", "paper", "form", "contract", "invoice"}},
	{"artwork", "creative artwork design", []string{"art", "painting", "drawing", "illustration", "design", "graphic", "poster", "sketch"}},
}

var (
	extension  = regexp.MustCompile(`\.[^/.]+$`)
	separators = regexp.MustCompile(`[-_]`)
	whitespace = regexp.MustCompile(`\s+`)
	imageOfImg = regexp.MustCompile(`(?i)\bimage of image\b`)
	photoOfPht = regexp.MustCompile(`(?i)\bphoto of photo\b`)
	nonWord    = regexp.MustCompile(`[^\w\s-]`)
	hyphenRuns = regexp.MustCompile(`-+`)
	stripMarks = runes.Remove(runes.In(unicode.Mn))
)

type nameAnalysis struct {
	cleanName string
	category  *category
}

func analyzeName(name string) nameAnalysis {
	base := extension.ReplaceAllString(name, "")
	lower := strings.ToLower(base)

	var a nameAnalysis
	for i := range categories {
		c := &categories[i]
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				a.category = c
				break
			}
		}
		if a.category != nil {
			break
		}
	}

	a.cleanName = strings.TrimSpace(whitespace.ReplaceAllString(separators.ReplaceAllString(base, " "), " "))
	return a
}

type pixelAnalysis struct {
	tone       string
	colorName  string
	brightness float64
	vibrant    bool
	average    colorful.Color
}

// analysisSize keeps the source aspect at AnalysisWidth, capping the height
// at MaxAnalysisHeight.
func analysisSize(w, h int) (int, int) {
	th := int(math.Round(float64(h) / float64(w) * AnalysisWidth))
	return AnalysisWidth, clampInt(th, 1, MaxAnalysisHeight)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// analyzePixels downsamples img to AnalysisWidth and averages roughly 1000
// evenly strided pixels.
func analyzePixels(img *imaging.RasterImage) pixelAnalysis {
	analysisW, analysisH := analysisSize(img.Width(), img.Height())
	thumb := transform.Resize(img.Image(), analysisW, analysisH, transform.Linear)

	w, th := thumb.Bounds().Dx(), thumb.Bounds().Dy()
	step := max(1, w*th/1000)

	var r, g, b, brightness float64
	count := 0
	for p := 0; p < w*th; p += step {
		c := color.NRGBAModel.Convert(thumb.RGBAAt(p%w, p/w)).(color.NRGBA)
		r += float64(c.R)
		g += float64(c.G)
		b += float64(c.B)
		brightness += 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		count++
	}
	n := float64(count)
	avgR, avgG, avgB := r/n, g/n, b/n

	a := pixelAnalysis{
		brightness: brightness / n,
		average:    colorful.Color{R: avgR / 255, G: avgG / 255, B: avgB / 255}.Clamped(),
	}

	switch {
	case a.brightness > 200:
		a.tone = "Very bright"
	case a.brightness > 150:
		a.tone = "Bright"
	case a.brightness < 50:
		a.tone = "Dark"
	case a.brightness < 100:
		a.tone = "Dimly lit"
	}

	hi := math.Max(avgR, math.Max(avgG, avgB))
	spread := hi - math.Min(avgR, math.Min(avgG, avgB))
	switch {
	case spread < 15:
		switch {
		case a.brightness > 200:
			a.colorName = "white"
		case a.brightness < 50:
			a.colorName = "black"
		default:
			a.colorName = "gray"
		}
	case hi == avgR:
		if avgG > avgR*0.8 {
			a.colorName = "orange/yellowish"
		} else {
			a.colorName = "reddish"
		}
	case hi == avgG:
		a.colorName = "greenish"
	default:
		a.colorName = "bluish"
	}
	a.vibrant = spread > 50
	return a
}

// Describe builds ALT text and a suggested file name from the file name and
// a coarse color analysis of img. It never fails.
func Describe(name string, img *imaging.RasterImage) Annotation {
	if img == nil || img.Width() == 0 || img.Height() == 0 {
		return Fallback(name)
	}
	file := analyzeName(name)
	px := analyzePixels(img)

	var visual []string
	if px.vibrant {
		visual = append(visual, "vibrant")
	}
	if px.tone != "" && !px.vibrant {
		visual = append(visual, strings.ToLower(px.tone))
	}
	if px.colorName != "" {
		visual = append(visual, px.colorName+" toned")
	}
	visualString := strings.Join(visual, " ")

	subject := "image"
	if file.category != nil {
		subject = file.category.subject
	}
	contextName := ""
	if utf8.RuneCountInString(file.cleanName) > 3 {
		contextName = file.cleanName
	}

	var alt string
	switch {
	case contextName != "" && file.category != nil:
		alt = visualString + " " + subject + " of " + contextName
	case contextName != "":
		alt = visualString + " image of " + contextName
	case file.category != nil:
		alt = visualString + " " + subject
	case visualString != "":
		alt = visualString + " abstract image"
	default:
		alt = "Descriptive image content"
	}
	alt = imageOfImg.ReplaceAllString(alt, "image")
	alt = photoOfPht.ReplaceAllString(alt, "photograph")
	alt = truncate(capitalize(strings.TrimSpace(whitespace.ReplaceAllString(alt, " "))), MaxAltTextLength)

	var short string
	if contextName != "" {
		short = contextName
		if file.category != nil && !strings.Contains(strings.ToLower(short), file.category.name) {
			short += " " + file.category.name
		}
	} else {
		cat := "image"
		if file.category != nil {
			cat = file.category.name
		}
		short = strings.TrimSpace(visualString + " " + cat)
	}

	a := Annotation{
		AltText:       alt,
		SuggestedName: Slug(short),
		Tone:          px.tone,
		ColorName:     px.colorName,
		Vibrant:       px.vibrant,
		Brightness:    px.brightness,
		AverageHex:    px.average.Hex(),
	}
	if file.category != nil {
		a.Category = file.category.name
	}
	return a
}

// Fallback describes an image from its file name alone, for sources that
// could not be decoded.
func Fallback(name string) Annotation {
	alt := analyzeName(name).cleanName
	if alt == "" {
		alt = extension.ReplaceAllString(name, "")
	}
	if alt == "" {
		alt = "Image"
	}
	return Annotation{AltText: alt, SuggestedName: Slug(alt)}
}

// DescribeBytes decodes data and describes it, falling back to the file
// name when data is not an image.
func DescribeBytes(name string, data []byte) Annotation {
	img, err := imaging.Decode(data)
	if err != nil {
		return Fallback(name)
	}
	return Describe(name, img)
}

// Slug lowercases s, folds accented letters to their base letter, drops
// everything except ASCII word characters, spaces and hyphens, and joins
// words with single hyphens.
func Slug(s string) string {
	folded, _, err := xtransform.String(xtransform.Chain(norm.NFD, stripMarks, norm.NFC), s)
	if err != nil {
		folded = s
	}
	out := strings.TrimSpace(strings.ToLower(folded))
	out = nonWord.ReplaceAllString(out, "")
	out = whitespace.ReplaceAllString(out, "-")
	return hyphenRuns.ReplaceAllString(out, "-")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
