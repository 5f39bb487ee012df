// Command combine_headcount_trafficking joins organ removal trafficking case
// counts with headcount_cleaned.csv. Run clean_headcount first.
package main

import (
	"os"

	"povclean/internal/app"
	"povclean/internal/jobs"
)

func main() {
	os.Exit(app.Main(jobs.CombinedJob))
}
