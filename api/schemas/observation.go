// api/schemas/observation.go
package schemas

// FidelityLevel orders the observation strategies by capture cost.
// The capture ladder tries them in ascending order and stops at the first
// level that resolves the intent unambiguously.
type FidelityLevel int

const (
	FidelityStructural FidelityLevel = iota
	FidelityListing
	FidelityQuery
	FidelityVisual
)

func (f FidelityLevel) String() string {
	switch f {
	case FidelityStructural:
		return "structural"
	case FidelityListing:
		return "listing"
	case FidelityQuery:
		return "query"
	case FidelityVisual:
		return "visual"
	}
	return "unknown"
}

// DetailLevel is the second escalation axis. High detail is requested only
// after the low-detail variant of the same level fails to resolve.
type DetailLevel int

const (
	DetailLow DetailLevel = iota
	DetailHigh
)

// CoordSpace is the frame of reference for a captured coordinate.
// Dispatching a click through the wrong space silently misclicks, so the
// executor branches on this tag and never assumes one.
type CoordSpace string

const (
	SpaceViewport CoordSpace = "viewport"
	SpacePage     CoordSpace = "page"
)

// Point is a coordinate in the space declared by the owning observation.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an element's box in the observation's coordinate space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// AddressableElement is one element the observation can hand to the
// executor: a locator, a role/text hint for matching, and optionally a box.
type AddressableElement struct {
	Locator string       `json:"locator"`
	Role    string       `json:"role,omitempty"`
	Text    string       `json:"text,omitempty"`
	Name    string       `json:"name,omitempty"`
	Box     *BoundingBox `json:"box,omitempty"`
}

// PageObservation is a captured view of the page at one fidelity level.
// It is valid only while its DOMVersion matches the session's current one.
type PageObservation struct {
	Level      FidelityLevel        `json:"level"`
	Detail     DetailLevel          `json:"detail"`
	DOMVersion uint64               `json:"dom_version"`
	URL        string               `json:"url,omitempty"`
	Space      CoordSpace           `json:"space,omitempty"` // Visual only.
	Elements   []AddressableElement `json:"elements"`
}

// Stale reports whether the observation no longer describes the page.
func (o PageObservation) Stale(currentVersion uint64) bool {
	return o.DOMVersion != currentVersion
}

// ElementTarget is a resolved reference to one addressable element, carrying
// enough to act without re-observation. It dies on the next mutation or when
// the owning observation goes stale, whichever comes first.
type ElementTarget struct {
	Locator    string     `json:"locator,omitempty"`
	Coord      *Point     `json:"coord,omitempty"`
	Space      CoordSpace `json:"space,omitempty"`
	DOMVersion uint64     `json:"dom_version"`
}
