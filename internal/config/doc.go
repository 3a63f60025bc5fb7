// Package config loads application settings and pipeline definitions.
//
// # Application configuration
//
// Settings are resolved in order of precedence:
//
//	1. WRANGLE_* environment variables, including those from a .env file (highest)
//	2. A YAML file (wrangle.yaml or configs/wrangle.yaml, or the --config flag)
//	3. Default values (lowest)
//
// Nested sections map to underscored names:
//
//	WRANGLE_SERVER_PORT=9090
//	WRANGLE_LOGGING_LEVEL=debug
//	WRANGLE_TELEMETRY_TRACE_EXPORTER=stdout
//	WRANGLE_SCRAPER_REQUESTS_PER_SECOND=0.5
//
// # Pipeline definitions
//
// A pipeline definition is a YAML document naming one input, an optional
// equality filter, derivation rules, an optional finite-value filter, an
// optional grouped summary, a column layout and the outputs:
//
//	name: crops
//	input: {path: ../testdata/crops.csv}
//	aggregate: {group_by: [crop], measure: yield, order_by: year, stats: [average, sd]}
//	output: {dir: out, formats: [csv, xlsx]}
//
// Relative paths are resolved against the directory holding the definition.
package config
