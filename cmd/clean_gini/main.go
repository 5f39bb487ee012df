// Command clean_gini reshapes the World Bank Gini index export into
// gini_cleaned.csv.
package main

import (
	"os"

	"povclean/internal/app"
	"povclean/internal/jobs"
)

func main() {
	os.Exit(app.Main(jobs.GINIJob))
}
