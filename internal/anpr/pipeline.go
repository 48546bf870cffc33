package anpr

import "context"

// Region is one candidate license-plate location the Detector found.
type Region struct {
	BoundingBox BoundingBox
	Confidence  float64
}

// BoundingBox mirrors vmscore.BoundingBox; kept separate so this package's
// external-pipeline contract doesn't force callers to import vmscore.
type BoundingBox struct {
	X, Y, W, H int
}

// Detector is the external ML model that locates candidate plate regions
// in a still frame. Implementations typically shell out to a subprocess;
// the core only depends on this interface (SPEC_FULL §4.4).
type Detector interface {
	Detect(ctx context.Context, framePath string) ([]Region, error)
}

// Extractor is the external OCR model that reads a normalized plate string
// out of one candidate region. A return of ("", nil) means no legible
// plate was found in that region.
type Extractor interface {
	Extract(ctx context.Context, framePath string, region Region) (plate string, err error)
}
