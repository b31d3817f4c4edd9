package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sketchvault/config"
	"sketchvault/core"
	"sketchvault/handlers/api/drawings"
	"sketchvault/handlers/auth"
	"sketchvault/handlers/collab"
	authMiddleware "sketchvault/middleware"
	"sketchvault/objectstore"
	"sketchvault/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store core.DrawingStore, client *objectstore.Client, authService *auth.Service) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(authService))
			r.Route("/drawings", func(r chi.Router) {
				r.Get("/", drawings.HandleList(store))
				r.Post("/", drawings.HandleCreate(store, client))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", drawings.HandleGet(store, client))
					r.Put("/", drawings.HandleSave(store, client))
					r.Delete("/", drawings.HandleDelete(store, client))
					r.Get("/thumbnail", drawings.HandleGetThumbnail(store, client))
				})
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authService.HandleLogin)
		r.Get("/callback", authService.HandleCallback)
	})

	return r
}

func waitForShutdown(io *socketio.Server) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-signalC
	logrus.Info("Shutting down...")
	io.Close(nil)
	os.Exit(0)
}

func main() {
	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config.Load()

	store, err := stores.NewDrawingStore(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize metadata store")
	}

	backend, err := stores.NewObjectBackend(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize object storage")
	}
	client := objectstore.NewClient(backend)

	authService := auth.NewService(cfg)

	r := setupRouter(store, client, authService)

	io := collab.NewServer()
	r.Mount("/socket.io/", io.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(io)
}
