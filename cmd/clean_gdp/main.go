// Command clean_gdp reshapes the World Bank GDP export into gdp_cleaned.csv,
// one row per country and year.
package main

import (
	"os"

	"povclean/internal/app"
	"povclean/internal/jobs"
)

func main() {
	os.Exit(app.Main(jobs.GDPJob))
}
