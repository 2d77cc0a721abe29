package version

import "fmt"

var (
	// Version is set with -ldflags "-X coinmarketcap-history/internal/version.Version=...".
	Version = "dev"
	Commit  = "unknown"
	// BuildDate is an RFC3339 timestamp.
	BuildDate = "unknown"
)

// UserAgent identifies this build to the scraped website.
func UserAgent() string {
	return fmt.Sprintf("cmcscrape/%s", Version)
}
