// ABOUTME: Version and product identity reported in client/hello
// ABOUTME: Shared by the player binary and the default session config
package version

const (
	// Version is the software version
	Version = "0.3.0"
	// Product is the product name sent as device info
	Product = "SendSpin Go Player"
	// Manufacturer is the manufacturer sent as device info
	Manufacturer = "SendSpin"
)
