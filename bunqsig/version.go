package bunqsig

// Product and Version form the default User-Agent, "bunqsig/<version>".
const (
	Product = "bunqsig"
	Version = "0.1.0"
)
