// Package internaldefs holds the metric names shared by the exporters.
//
// The Prometheus and OTel exporters read the same table so both expose
// identical names and help strings.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
