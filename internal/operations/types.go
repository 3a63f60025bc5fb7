package operations

// Pipeline step identifiers
const (
	StepIDLoad      = "load"
	StepIDFilter    = "filter"
	StepIDEnrich    = "enrich"
	StepIDFinite    = "finite"
	StepIDAggregate = "aggregate"
	StepIDLayout    = "layout"
	StepIDExport    = "export"
)

// Pipeline step names
const (
	StepNameLoad      = "Load Input"
	StepNameFilter    = "Filter Rows"
	StepNameEnrich    = "Derive Columns"
	StepNameFinite    = "Drop Non-finite Rows"
	StepNameAggregate = "Summarize Groups"
	StepNameLayout    = "Arrange Columns"
	StepNameExport    = "Write Outputs"
)

// Step metadata keys
const (
	MetadataRows    = "rows"
	MetadataColumns = "columns"
	MetadataDropped = "dropped"
	MetadataGroups  = "groups"
	MetadataFiles   = "files"
	MetadataSource  = "source"
)

// SummarySuffix is appended to the output name for summary files.
const SummarySuffix = "_summary"
