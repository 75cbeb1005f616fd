// Package db provides the embedded database schema and seed catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the initial catalog loaded into an empty database, as a
// JSON array of products in the API's wire format.
//
//go:embed seed/products.json
var SeedProducts []byte
