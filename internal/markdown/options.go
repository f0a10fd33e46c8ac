package markdown

// TableMode selects how the parser reports tables.
type TableMode string

const (
	// TableText reports a table as one block with its raw text as the delta.
	TableText TableMode = "text"
	// TableStructured expands a table into header, body, row and cell events.
	TableStructured TableMode = "structured"
)

const (
	DefaultMaxDeltaChunkSize   = 1
	DefaultProseFlushThreshold = 256
	DefaultIDPrefix            = "md-"
)

// Options configures both the Segmenter and the Parser. Zero values select
// the defaults.
type Options struct {
	// MaxDeltaChunkSize bounds how many bytes of consecutive prose tokens are
	// merged into one delta. The default of 1 never merges.
	MaxDeltaChunkSize int
	// ProseFlushThreshold is how much prose without a paragraph boundary the
	// Segmenter holds before it starts cutting at word boundaries.
	ProseFlushThreshold int
	TableOutputMode     TableMode
	IDPrefix            string
}

func (o Options) withDefaults() Options {
	if o.MaxDeltaChunkSize <= 0 {
		o.MaxDeltaChunkSize = DefaultMaxDeltaChunkSize
	}
	if o.ProseFlushThreshold <= 0 {
		o.ProseFlushThreshold = DefaultProseFlushThreshold
	}
	if o.TableOutputMode == "" {
		o.TableOutputMode = TableText
	}
	if o.IDPrefix == "" {
		o.IDPrefix = DefaultIDPrefix
	}
	return o
}
