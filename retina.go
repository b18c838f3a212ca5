package sitedeco

import (
	"errors"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tfiers/sitedeco/internal/htmlpage"
)

const (
	// defaultMinPixels is 500×300: figures saved at 2× pixel density exceed it,
	// figures from older notebooks saved at 1× usually don't.
	defaultMinPixels = 500 * 300

	defaultContainerClass = "cell_output"
)

// SizeLookup returns the natural (intrinsic) size of the image at src.
type SizeLookup func(src string) (width, height int, err error)

// ResizeReport summarizes one [RetinaResizer.Resize] pass.
type ResizeReport struct {
	// Figures is the number of images found in output containers.
	Figures int

	// Resized is the number of images whose width attribute was changed.
	// Images already carrying the halved width are not counted.
	Resized int

	// Skipped counts images whose natural size could not be determined.
	Skipped int
}

// Add accumulates another report into r.
func (r *ResizeReport) Add(other ResizeReport) {
	r.Figures += other.Figures
	r.Resized += other.Resized
	r.Skipped += other.Skipped
}

// RetinaResizer halves the displayed width of figures presumed to have been
// rendered at double pixel density, so they show at their intended size.
//
// Only images that are direct children of an element carrying the container
// class (notebook cell outputs) are considered. An image is presumed high
// density when its natural pixel area exceeds the threshold; its width
// attribute is then set to half its natural width, rounded down. Height is
// left alone so browsers keep the aspect ratio.
type RetinaResizer struct {
	minPixels      int
	containerClass string
}

// NewRetinaResizer creates a [RetinaResizer].
//
// Defaults:
//   - Minimum pixel area: 150000 (500×300), exclusive
//   - Container class: "cell_output"
func NewRetinaResizer(opts ...RetinaOption) (*RetinaResizer, error) {
	cfg := &retinaConfig{
		minPixels:      defaultMinPixels,
		containerClass: defaultContainerClass,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &RetinaResizer{
		minPixels:      cfg.minPixels,
		containerClass: cfg.containerClass,
	}, nil
}

// IsRetina reports whether an image of the given natural size is presumed to
// be high density.
func (r *RetinaResizer) IsRetina(width, height int) bool {
	return width*height > r.minPixels
}

// Resize sets the width of every high density figure in doc. Images whose
// size lookup fails are skipped.
func (r *RetinaResizer) Resize(doc *html.Node, lookup SizeLookup) ResizeReport {
	var report ResizeReport

	for _, img := range r.figures(doc) {
		report.Figures++

		src, ok := htmlpage.Attr(img, "src")
		if !ok || src == "" {
			report.Skipped++
			continue
		}
		w, h, err := lookup(src)
		if err != nil {
			report.Skipped++
			continue
		}
		if !r.IsRetina(w, h) {
			continue
		}

		width := strconv.Itoa(w / 2)
		if current, _ := htmlpage.Attr(img, "width"); current != width {
			htmlpage.SetAttr(img, "width", width)
			report.Resized++
		}
	}

	return report
}

// figures returns img elements whose parent carries the container class.
func (r *RetinaResizer) figures(doc *html.Node) []*html.Node {
	return htmlpage.FindAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Img &&
			n.Parent != nil &&
			n.Parent.Type == html.ElementNode &&
			htmlpage.HasClass(n.Parent, r.containerClass)
	})
}

// retinaConfig holds mutable state during resizer construction.
type retinaConfig struct {
	minPixels      int
	containerClass string
}

// RetinaOption configures a [RetinaResizer].
type RetinaOption func(*retinaConfig) error

// WithMinPixels sets the pixel area an image must exceed to be presumed high
// density.
func WithMinPixels(n int) RetinaOption {
	return func(cfg *retinaConfig) error {
		if n <= 0 {
			return errors.New("min pixels must be positive")
		}
		cfg.minPixels = n
		return nil
	}
}

// WithContainerClass sets the class of the elements whose img children are
// considered figures.
func WithContainerClass(class string) RetinaOption {
	return func(cfg *retinaConfig) error {
		if class == "" {
			return errors.New("container class cannot be empty")
		}
		cfg.containerClass = class
		return nil
	}
}
