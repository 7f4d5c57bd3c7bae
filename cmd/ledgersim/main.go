// Package main runs an in-process fake of the ledger API for local
// development against cmd/invoicer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger/ledgertest"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

type seedProduct struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	TaxIDs []int64         `json:"tax_ids"`
}

var defaultCatalog = []seedProduct{
	{Code: "LIQUIPP07", Name: "Liquipops maracuya 1150 gr", Price: decimal.NewFromInt(23500), TaxIDs: []int64{8095}},
	{Code: "SKARCHA01", Name: "Skarcha limon 250 gr", Price: decimal.RequireFromString("8403.36"), TaxIDs: []int64{8095}},
	{Code: "GEN01", Name: "Producto generico", Price: decimal.Zero, TaxIDs: []int64{8095}},
}

func main() {
	addr := flag.String("addr", ":8089", "listen address")
	token := flag.String("token", os.Getenv("LEDGER_TOKEN"), "required bearer token, empty accepts any")
	partner := flag.String("partner", "", "required Partner-Id header, empty accepts any")
	catalogFile := flag.String("catalog", "", "JSON file with products to seed")
	acceptUnknown := flag.Bool("accept-unknown", false, "accept item codes missing from the catalog")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "debug", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	products := defaultCatalog
	if *catalogFile != "" {
		if products, err = loadCatalog(*catalogFile); err != nil {
			log.Fatalw("failed to load catalog", "file", *catalogFile, "error", err)
		}
	}

	sim := ledgertest.New(ledgertest.Config{
		Token:              *token,
		PartnerID:          *partner,
		AcceptUnknownCodes: *acceptUnknown,
		Logger:             log,
	})
	for _, p := range products {
		sim.AddProduct(ledgertest.Product{Code: p.Code, Name: p.Name, Price: p.Price, TaxIDs: p.TaxIDs})
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infow("ledger simulator listening", "addr", *addr, "products", len(products))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}
	log.Info("ledger simulator stopped")
}

func loadCatalog(path string) ([]seedProduct, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []seedProduct
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return out, nil
}
