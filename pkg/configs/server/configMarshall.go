package server

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/server.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// ServerConfigMarshall is the mutable, marshalling counterpart of
// ServerConfig. Seal it with TrySeal before use.
type ServerConfigMarshall struct {
	Port   int32                 `yaml:"port,omitempty"`
	Bundle *BundleConfigMarshall `yaml:"bundle"`
}

var _ Marshalled[*ServerConfig] = &ServerConfigMarshall{}

func (s *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return &ServerConfig{
		port:   port,
		bundle: nonnil(s.Bundle, path+".bundle").trySeal(path + ".bundle"),
	}
}

type BundleConfigMarshall struct {
	StoreRoot string `yaml:"storeRoot"`
	Manifest  string `yaml:"manifest"`
}

func (b *BundleConfigMarshall) trySeal(path string) *BundleConfig {
	return &BundleConfig{
		storeRoot: required(b.StoreRoot, path+".storeRoot"),
		manifest:  required(b.Manifest, path+".manifest"),
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
