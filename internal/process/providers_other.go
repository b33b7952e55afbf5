//go:build !linux && !windows

package process

// DefaultProviders returns the discovery chain for macOS and the BSDs.
func DefaultProviders() []Provider {
	return []Provider{
		LsofProvider(),
		NewSocketTableProvider(),
	}
}
