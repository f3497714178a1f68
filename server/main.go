// server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/go-redis/redis"

	"github.com/rexlx/postbook/blog"
	"github.com/rexlx/postbook/config"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yml or ./config/config.yml)")
	flag.Parse()

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		errorLog.Fatalf("Could not load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the database connection.
	db, err := blog.NewDatabase(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		errorLog.Fatalf("Could not initialize database: %v", err)
	}
	defer db.Close()
	infoLog.Println("Successfully connected to the database.")
	if err := db.CreateTables(ctx); err != nil {
		errorLog.Fatalf("Could not create tables: %v", err)
	}

	session := scs.New()
	session.Store = pgxstore.New(db.Pool())
	session.Lifetime = cfg.Session.Lifetime
	session.Cookie.Secure = cfg.Session.Secure
	session.Cookie.HttpOnly = true
	session.Cookie.SameSite = http.SameSiteLaxMode

	opts := blog.Options{
		PageSize:      cfg.App.PageSize,
		IndexCacheTTL: cfg.App.IndexCacheTTL,
		MediaDir:      cfg.App.MediaDir,
		Session:       session,
		InfoLog:       infoLog,
		ErrorLog:      errorLog,
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := client.Ping().Result(); err != nil {
			errorLog.Fatalf("Could not connect to Redis at %s: %v", cfg.Redis.Addr, err)
		}
		defer client.Close()
		opts.Cache = blog.NewRedisPageCache(client)
		infoLog.Printf("Caching pages in Redis at %s", cfg.Redis.Addr)
	}

	if cfg.RabbitMQ.URL != "" {
		notifier, err := blog.NewRabbitNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			errorLog.Fatalf("Could not set up notifications: %v", err)
		}
		defer notifier.Close()
		opts.Notifier = notifier
		go func() {
			if err := notifier.Listen(ctx, db, errorLog); err != nil {
				errorLog.Printf("Notification listener stopped: %v", err)
			}
		}()
		infoLog.Printf("Delivering notifications through queue %q", cfg.RabbitMQ.Queue)
	}

	handlers, err := blog.NewHandlers(db, opts)
	if err != nil {
		errorLog.Fatalf("Could not create handlers: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.App.Addr,
		Handler:      handlers.Routes(),
		ErrorLog:     errorLog,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		infoLog.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errorLog.Printf("Shutdown: %v", err)
		}
	}()

	infoLog.Printf("Starting server on %s", cfg.App.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorLog.Fatalf("Server failed to start: %v", err)
	}
	<-idle
}
