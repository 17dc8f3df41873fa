package server_test

import (
	"testing"

	ccs "github.com/credfab/credfab/pkg/configs/server"
)

func TestLoadServerConfig(t *testing.T) {

	t.Run("it can be created from a config file", func(t *testing.T) {
		result, err := ccs.LoadServerConfig("./testdata/config.yaml")

		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}
		if result.Port() != 8088 {
			t.Errorf("unmatch port:%d, expected:%d", result.Port(), 8088)
		}
		expectedRoot := "/var/lib/credfab/store"
		if result.Bundle().StoreRoot() != expectedRoot {
			t.Errorf("unmatch storeRoot:%s, expected:%s", result.Bundle().StoreRoot(), expectedRoot)
		}
		expectedManifest := "/var/lib/credfab/bundle.yaml"
		if result.Bundle().Manifest() != expectedManifest {
			t.Errorf("unmatch manifest:%s, expected:%s", result.Bundle().Manifest(), expectedManifest)
		}
	})

	t.Run("port defaults when omitted", func(t *testing.T) {
		result, err := ccs.Unmarshal([]byte(`
bundle:
  storeRoot: /tmp/store
  manifest: /tmp/bundle.yaml
`))
		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}
		if result.Port() != 8080 {
			t.Errorf("unmatch port:%d, expected:%d", result.Port(), 8080)
		}
	})

	t.Run("missing bundle section panics on seal", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("misconfiguration should panic")
			}
		}()
		_, _ = ccs.Unmarshal([]byte(`port: 8080`))
	})
}
