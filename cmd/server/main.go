package main

import (
	"context"
	"net/http"
	"os"

	webAdapter "pos-backend/internal/adapters/web"
	"pos-backend/internal/core"
	"pos-backend/internal/db"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logrus.Fatalf("database: %v", err)
	}
	defer pool.Close()

	stockService := core.NewStockService(pool)
	transactionService := core.NewTransactionService(pool, stockService)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(stockService, transactionService, allowedOrigins)

	logrus.WithField("port", port).Info("server starting")
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logrus.Fatalf("server: %v", err)
	}
}
