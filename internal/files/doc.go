// Package files discovers pipeline definitions and tabular inputs on disk.
//
// Example usage:
//
//	discovery := files.NewDiscovery(".")
//	pipelines, err := discovery.FindPipelines("pipelines")
//	inputs, err := discovery.FindInputs("data")
//	newest, ok := files.GetLatestFile(inputs)
package files
