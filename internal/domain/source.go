package domain

// Source represents how a mint entered the evaluation stream.
type Source string

const (
	SourceTrending  Source = "TRENDING"
	SourceManual    Source = "MANUAL"
	SourceWatchlist Source = "WATCHLIST"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceTrending || s == SourceManual || s == SourceWatchlist
}
