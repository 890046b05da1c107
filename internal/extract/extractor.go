package extract

// Extractor converts raw HTML into a Document. Implementations must be
// deterministic and free of side effects.
type Extractor interface {
	Extract(input []byte) Document
}

// DensityExtractor is the default Extractor. It strips boilerplate and keeps
// the densest block of prose, see FromHTML.
type DensityExtractor struct{}

func (DensityExtractor) Extract(input []byte) Document {
	return FromHTML(input)
}
