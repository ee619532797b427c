// Package connectors holds the Connector implementations that read raw
// documents for ingestion. The filesystem connector is the only source.
package connectors
