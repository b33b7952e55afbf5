package process

// DefaultProviders returns the discovery chain for Linux.
func DefaultProviders() []Provider {
	return []Provider{
		LsofProvider(),
		NewSocketTableProvider(),
		SSProvider(),
		NetstatProvider(),
	}
}
