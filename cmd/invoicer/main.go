// Package main provides a CLI that prepares ledger invoices and quotations
// from order files and optionally submits them.
//
// Usage: invoicer prepare --kind invoice --file order.json
//
//	invoicer submit  --kind quotation --file order.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/config"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	appctx "github.com/jecaicedo27/toppingfrozen-sub005/internal/core/context"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/billing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/cache"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/jobs"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/storage/postgres"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "prepare":
		os.Exit(run(os.Args[2:], false))
	case "submit":
		os.Exit(run(os.Args[2:], true))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Ledger document CLI

Usage:
  invoicer <command> --kind invoice|quotation --file <order.json>

Commands:
  prepare   Build the document and print it with its wire payload
  submit    Build and send the document; on an uncertain outcome, look it up
  help      Show this help

Order file:
  {"customer": {"identification": "900123456"},
   "items": [{"candidates": ["LIQUIPP07"], "quantity": "3"}],
   "notes": "...", "options": {"apply_withholding": true}}

Environment Variables:
  LEDGER_BASE_URL, LEDGER_TOKEN, LEDGER_PARTNER_ID   ledger API access
  REDIS_ADDR           shared product cache (optional)
  STOCK_QUEUE          enqueue stock decrements after invoices (needs REDIS_ADDR)
  PG_DSN               system_config pricing policy (optional)
  LOG_LEVEL, APP_ENV   logging`)
}

func run(args []string, submit bool) int {
	fs := flag.NewFlagSet("invoicer", flag.ContinueOnError)
	kindName := fs.String("kind", "invoice", "document kind: invoice or quotation")
	file := fs.String("file", "-", "order file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	kind, ok := pricing.ParseKind(*kindName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown kind %q\n", *kindName)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = appctx.WithDocument(logger.WithLogger(ctx, log), filepath.Base(*file))

	req, err := readOrder(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	svc, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		log.Errorw("failed to initialize", "error", err)
		return 1
	}
	defer cleanup()

	var doc *billing.PreparedDocument
	if kind == pricing.Quotation {
		doc, err = svc.PrepareQuotation(ctx, req)
	} else {
		doc, err = svc.PrepareInvoice(ctx, req)
	}
	if err != nil {
		return printError(err)
	}

	if !submit {
		printJSON(map[string]any{
			"kind":     kind.String(),
			"document": doc,
			"payload":  billing.BuildRequest(doc),
		})
		return 0
	}

	var res *billing.SubmissionResult
	if kind == pricing.Quotation {
		res, err = svc.CreateQuotation(ctx, doc)
	} else {
		res, err = svc.CreateInvoice(ctx, doc)
	}
	if err != nil {
		if billing.StageOf(err) == billing.StageUncertain {
			if found, findErr := svc.FindSubmitted(ctx, doc); findErr == nil {
				log.Warnw("submission failed but the document exists in the ledger",
					"remote_id", found.ID, "name", found.Name)
				printJSON(map[string]any{"kind": kind.String(), "reconciled": found})
				return 0
			}
		}
		return printError(err)
	}

	printJSON(map[string]any{
		"kind":      kind.String(),
		"remote_id": res.RemoteID,
		"number":    res.Number,
		"name":      res.Name,
		"total":     res.Total,
		"payment":   doc.Payment,
	})
	return 0
}

// buildService wires the ledger client, catalog cache and policy source.
func buildService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*billing.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	exec := ledger.NewExecutor(cfg.Executor(), log)
	client := ledger.NewClient(cfg.Ledger(), ledger.StaticToken(cfg.LedgerToken), exec, log)

	var products catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unavailable, using in-process product cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			products = cache.NewProductCache(rdb, "", cfg.ProductCacheTTL, log)
		}
	}
	resolver := catalog.NewResolver(client, products, log)

	var policies pricing.Source = pricing.NewStaticSource(cfg.Policy())
	if cfg.PGDSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.PGDSN))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to config database: %w", err)
		}
		closers = append(closers, pool.Close)

		store := postgres.NewPolicyStore(pool.Unwrap(), cfg.Policy(), log)
		policyCache := cache.NewPolicyCache(store, pool.Unwrap(), log)
		if err := policyCache.Start(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, policyCache.Stop)
		policies = policyCache
		postgres.LogPoolStats(ctx, pool.Unwrap())
	}

	logHook := billing.SubmissionHookFunc(func(ctx context.Context, doc *billing.PreparedDocument, res *billing.SubmissionResult) error {
		log.WithContext(ctx).Infow("document accepted by ledger",
			"kind", doc.Kind.String(),
			"remote_id", res.RemoteID,
			"name", res.Name,
			"lines", len(doc.Lines))
		return nil
	})

	hooks := []billing.SubmissionHook{logHook}
	if cfg.StockQueue {
		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		closers = append(closers, func() { _ = queue.Close() })
		hooks = append(hooks, jobs.NewStockHook(queue, log))
	}

	svc := billing.NewService(cfg.Billing(), policies, resolver, client, log, billing.WithHooks(hooks...))
	return svc, cleanup, nil
}

func readOrder(path string) (billing.PrepareRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return billing.PrepareRequest{}, err
		}
		defer f.Close()
		r = f
	}

	var req billing.PrepareRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return billing.PrepareRequest{}, fmt.Errorf("decode order: %w", err)
	}
	return req, nil
}

func printError(err error) int {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.NewInternal(err)
	}
	out := map[string]any{
		"code":    appErr.Code,
		"message": appErr.Message,
		"stage":   billing.StageOf(err),
	}
	if len(appErr.Details) > 0 {
		out["details"] = appErr.Details
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	return 1
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
