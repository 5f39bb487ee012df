// Command clean_headcount reshapes the poverty headcount ratio export into
// headcount_cleaned.csv.
package main

import (
	"os"

	"povclean/internal/app"
	"povclean/internal/jobs"
)

func main() {
	os.Exit(app.Main(jobs.HeadcountJob))
}
