package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-order-desk/internal/config"
	"github.com/ariefcatur/go-order-desk/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-desk/internal/kafka"
	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/postgres"
	"github.com/ariefcatur/go-order-desk/internal/redisx"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderItems, 1024)
	prod.Start(ctx)

	// Stores & core
	userRepo := &users.Repo{DB: db, BcryptCost: cfg.BcryptCost}
	productRepo := &orders.ProductRepo{DB: db}
	orderRepo := &orders.OrderRepo{DB: db}
	recon := &orders.Reconciler{DB: db}
	sessions := &httpx.RedisSessions{Redis: rdb, TTL: cfg.SessionTTL}

	api := &httpx.API{
		Sessions: sessions,
		Auth:     &httpx.AuthHandler{Users: userRepo, Sessions: sessions, TTL: cfg.SessionTTL},
		Users:    &httpx.UsersHandler{Users: userRepo},
		Products: &httpx.ProductsHandler{Products: productRepo},
		Orders:   &httpx.OrdersHandler{Orders: orderRepo, Redis: rdb},
		Items: &httpx.ItemsHandler{
			Items:    recon,
			Orders:   orderRepo,
			Producer: prod,
			Redis:    rdb,
			Service:  cfg.ServiceName,
		},
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Routes()}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // stop intake -> flush & close writer
	prod.WaitClosed() // drain
}
