package config

const (
	// DefaultDatabasePath is the default destination database file
	DefaultDatabasePath = "./congregate.db"

	// DefaultThreshold is the number of accepted records per flush
	DefaultThreshold = 100
)
