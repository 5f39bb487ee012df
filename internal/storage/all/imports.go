// Package all wires the built-in storage backends into the storage registry.
//
// Importing it (usually as a blank import from a main package) runs the init
// functions of each backend, which register their factories:
//
//   - "csv" (povclean/internal/storage/csvfile)
package all

import (
	_ "povclean/internal/storage/csvfile"
)
