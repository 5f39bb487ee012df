// Command clean_decile extracts the United States decile shares from
// Decile/povertyinequality.csv into us_decile_cleaned.csv.
package main

import (
	"os"

	"povclean/internal/app"
	"povclean/internal/jobs"
)

func main() {
	os.Exit(app.Main(jobs.DecileJob))
}
