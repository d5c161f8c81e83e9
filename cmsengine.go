// Package cmsengine is a content-management backend built with Go and Echo.
// It serves CRUD JSON endpoints for homepage sliders, press releases and
// photo galleries, stores uploaded images on disk, and renders a public page
// per gallery that the gallery's QR code points at.
//
// Records live in a document store (embedded SQLite by default, MongoDB
// optionally); see the store package.
package cmsengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eringen/cmsengine/qrcode"
	"github.com/eringen/cmsengine/store"
	"github.com/eringen/cmsengine/upload"
)

// App is the central cmsengine application. It wires together the store,
// upload storage, caches, handlers and middleware.
type App struct {
	Config  Config
	Echo    *echo.Echo
	DB      store.DB
	Uploads *upload.Storage

	Sliders store.Collection[Slider]
	Press   store.Collection[Press]
	Photos  store.Collection[Photo]

	sliderCache *ListCache[Slider]
	pressCache  *ListCache[Press]
	photoCache  *ListCache[Photo]

	qr           qrcode.Encoder
	writeLimiter *WriteLimiter
	registry     *prometheus.Registry
	uploaded     *prometheus.CounterVec
	customRoutes []func(*App)
	ready        bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:   cfg,
		Echo:     echo.New(),
		qr:       qrcode.Encoder{Size: qrcode.DefaultSize},
		registry: prometheus.NewRegistry(),
	}
	a.Echo.HideBanner = true
	a.Echo.Logger.SetLevel(cfg.logLevel())

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup opens the store and registers middleware and routes. Start calls it
// when it has not run yet.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("cmsengine: %w", err)
	}

	if a.DB == nil {
		db, err := openDB(ctx, a.Config.Store)
		if err != nil {
			return fmt.Errorf("cmsengine: init store: %w", err)
		}
		a.DB = db
	}
	if err := a.openCollections(ctx); err != nil {
		return fmt.Errorf("cmsengine: init collections: %w", err)
	}

	a.Uploads = upload.New(a.Config.UploadDir, upload.WithMaxSize(int64(a.Config.MaxUploadSize)))

	ttl := a.Config.ListCacheTTL.Duration
	a.sliderCache = NewListCache[Slider](ttl)
	a.pressCache = NewListCache[Press](ttl)
	a.photoCache = NewListCache[Photo](ttl)

	if a.Config.WriteLimit > 0 {
		a.writeLimiter = NewWriteLimiter(a.Config.WriteLimit, time.Minute)
	}

	a.uploaded = promauto.With(a.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmsengine",
		Name:      "uploaded_files_total",
		Help:      "Image files stored, by bucket.",
	}, []string{"bucket"})

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

func openDB(ctx context.Context, cfg StoreConfig) (store.DB, error) {
	switch cfg.Driver {
	case "mongo":
		return store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return store.OpenSQLite(cfg.SQLitePath)
	}
}

func (a *App) openCollections(ctx context.Context) error {
	var err error
	if a.Sliders, err = store.NewCollection[Slider](ctx, a.DB, sliderSchema); err != nil {
		return err
	}
	if a.Press, err = store.NewCollection[Press](ctx, a.DB, pressSchema); err != nil {
		return err
	}
	if a.Photos, err = store.NewCollection[Photo](ctx, a.DB, photoSchema); err != nil {
		return err
	}
	return nil
}

// Start sets the App up if needed and serves until Shutdown.
func (a *App) Start() error {
	if err := a.Setup(context.Background()); err != nil {
		return err
	}
	a.Echo.Logger.Infof("cmsengine listening on %s (store %s, uploads %s)", a.Config.Addr, a.Config.Store.Driver, a.Config.UploadDir)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the server and shuts it down gracefully once ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- a.Start() }()

	select {
	case err := <-errc:
		a.Close()
		return err
	case <-ctx.Done():
	}

	a.Echo.Logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout.Duration)
	defer cancel()
	err := a.Shutdown(sctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	if serr := <-errc; err == nil {
		err = serr
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.writeLimiter != nil {
		a.writeLimiter.Stop()
	}
	if a.DB != nil {
		err := a.DB.Close()
		a.DB = nil
		return err
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/assets/*", echo.WrapHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(embeddedFS())))))
	e.Static(a.Uploads.URLBase(), a.Uploads.Root())

	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: a.registry}))

	// Public gallery pages
	e.GET("/photoGallery/:permalink", a.handleGallery)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	api := e.Group(a.Config.APIPrefix)
	if a.writeLimiter != nil {
		api.Use(a.writeLimiter.Middleware)
	}

	api.POST("/sliders", a.createSlider)
	api.GET("/sliders", a.listSliders)
	api.GET("/sliders/:id", a.getSlider)
	api.PUT("/sliders/:id", a.updateSlider)
	api.DELETE("/sliders/:id", a.deleteSlider)

	api.POST("/press", a.createPress)
	api.GET("/press", a.listPress)
	api.GET("/press/:id", a.getPress)
	api.PUT("/press/:id", a.updatePress)
	api.DELETE("/press/:id", a.deletePress)

	api.POST("/photos", a.createPhoto)
	api.GET("/photos", a.listPhotos)
	api.GET("/photos/:id", a.getPhoto)
	api.PUT("/photos/:id", a.updatePhoto)
	api.DELETE("/photos/:id", a.deletePhoto)
}
