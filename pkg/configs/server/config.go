package server

// ServerConfig is the sealed, read-only configuration of the prediction
// server.
//
// To get a ServerConfig instance, use `ServerConfigMarshall.TrySeal()` .
type ServerConfig struct {
	port   int32
	bundle *BundleConfig
}

func (c *ServerConfig) Port() int32 {
	return c.port
}

func (c *ServerConfig) Bundle() *BundleConfig {
	return c.bundle
}

// BundleConfig locates the serving bundle.
type BundleConfig struct {
	storeRoot string
	manifest  string
}

// Root directory of the content-addressed artifact store.
func (b *BundleConfig) StoreRoot() string {
	return b.storeRoot
}

// Path of the bundle manifest file. The server watches it and reloads on
// change.
func (b *BundleConfig) Manifest() string {
	return b.manifest
}
