package pipeline

// Defaults for a transformation session.
// These can be overridden via configuration or command-line flags.
const (
	// DefaultOutputPath is where the normalized table is written.
	DefaultOutputPath = "output/transformed_general_ledger.csv"

	// DefaultLogDir holds session logs and the issue log.
	DefaultLogDir = "logs"
)
