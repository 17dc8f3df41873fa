package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/credfab/credfab/cmd/credd/handlers"
	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/bundle"
	ccs "github.com/credfab/credfab/pkg/configs/server"
	"github.com/credfab/credfab/pkg/inference"
	"github.com/credfab/credfab/pkg/utils/echoutil"
	"github.com/credfab/credfab/pkg/utils/filewatch"
)

func main() {

	configPath := flag.String("config-path", "", "server config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	// set log
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	// read configfile
	conf, err := ccs.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}

	store, err := artifacts.NewFileStore(conf.Bundle().StoreRoot())
	if err != nil {
		log.Fatalf("can not open artifact store: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := inference.New()
	manifestPath := conf.Bundle().Manifest()
	if err := reload(ctx, engine, store, manifestPath); err != nil {
		// a missing bundle at boot is not fatal. the server answers 503
		// until the first manifest arrives.
		log.Printf("no serving bundle yet: %s", err)
	} else {
		log.Printf("serving bundle %s", engine.Version())
	}

	go watchManifest(ctx, e, engine, store, manifestPath)

	// handlers
	{
		e.POST("/api/predict/", handlers.PredictHandler(engine))
		e.GET("/api/health/", handlers.HealthHandler(engine))
	}
	log.Println("registred routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	context.AfterFunc(ctx, func() {
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			log.Printf("error on shutdown: %s", err)
		}
	})

	addr := fmt.Sprintf(":%d", conf.Port())
	cert, key := *pcert, *pkey
	if cert != "" && key != "" {
		e.Logger.Fatal(e.StartTLS(addr, cert, key))
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}

// reload reads the manifest and swaps the assembled bundle into the engine.
func reload(ctx context.Context, engine *inference.Engine, store artifacts.Store, manifestPath string) error {
	m, err := bundle.ReadManifest(manifestPath)
	if err != nil {
		return err
	}
	b, err := bundle.Load(ctx, store, m)
	if err != nil {
		return err
	}
	return engine.Load(b)
}

// watchManifest reloads the serving bundle every time the manifest file
// changes. A manifest that fails to load leaves the previous bundle serving.
func watchManifest(ctx context.Context, e *echo.Echo, engine *inference.Engine, store artifacts.Store, manifestPath string) {
	for {
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, manifestPath)
		if err != nil {
			e.Logger.Errorf("can not watch bundle manifest: %s", err)
			return
		}
		<-wctx.Done()
		cancel()
		if ctx.Err() != nil {
			return
		}

		// manifests are replaced atomically; the rename may still be
		// settling when the event fires
		time.Sleep(100 * time.Millisecond)

		if err := reload(ctx, engine, store, manifestPath); err != nil {
			e.Logger.Errorf("new bundle rejected, keep serving %s: %s", engine.Version(), err)
			continue
		}
		e.Logger.Infof("bundle reloaded: now serving %s", engine.Version())
	}
}
