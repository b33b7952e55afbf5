package process

// DefaultProviders returns the discovery chain for Windows.
func DefaultProviders() []Provider {
	return []Provider{
		NewSocketTableProvider(),
		WindowsNetstatProvider(),
	}
}
