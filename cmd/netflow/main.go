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

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/api"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/chain"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/config"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/indexer"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/journal"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/out"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/registry"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/store"
	"github.com/chenzhangda16/polygon-netflow/pkg/obs"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	var (
		apiOnly     = flag.Bool("api-only", false, "run only the API server (skip the indexer)")
		indexerOnly = flag.Bool("indexer-only", false, "run only the indexer (skip the API)")
	)
	flag.Parse()
	obs.Init("netflow")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	obs.SetVerbose(cfg.Debug)
	if !common.IsHexAddress(cfg.TokenAddress) {
		log.Fatalf("invalid POL token address: %s", cfg.TokenAddress)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	// Seed the exchange set: env csv wins, baked-in Binance list otherwise.
	entries := registry.DefaultBinance
	if cfg.ExchangeAddresses != "" {
		entries = registry.FromCSV(cfg.ExchangeAddresses, "binance")
	}
	if err := st.SeedExchangeAddresses(ctx, entries); err != nil {
		log.Fatalf("seed exchange addresses: %v", err)
	}
	persisted, err := st.LoadExchangeAddresses(ctx)
	if err != nil {
		log.Fatalf("load exchange addresses: %v", err)
	}
	reg := registry.New(persisted)
	log.Printf("[main] exchange set loaded: addresses=%d", reg.Len())

	g, ctx := errgroup.WithContext(ctx)

	if !*apiOnly {
		client, err := chain.Dial(ctx, cfg.RPCURL, common.HexToAddress(cfg.TokenAddress))
		if err != nil {
			log.Fatalf("dial rpc: %v", err)
		}
		defer client.Close()

		ix, err := indexer.New(indexer.Config{Confirmations: cfg.Confirmations}, client, st, reg, st)
		if err != nil {
			log.Fatal(err)
		}
		if cfg.JournalPath != "" {
			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				log.Fatalf("open journal: %v", err)
			}
			defer j.Close()
			ix.WithJournal(j)
			log.Printf("[main] raw-log journal enabled: path=%s", cfg.JournalPath)
		}
		if cfg.KafkaBrokers != "" {
			sink, err := out.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
			if err != nil {
				log.Fatalf("open kafka sink: %v", err)
			}
			defer sink.Close()
			ix.WithSink(sink)
			log.Printf("[main] transfer firehose enabled: topic=%s", cfg.KafkaTopic)
		}

		g.Go(func() error { return ix.Run(ctx) })
	}

	if !*indexerOnly {
		srv := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: api.NewServer(st).Handler(),
		}
		g.Go(func() error {
			log.Printf("[main] HTTP API listening on http://%s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			return srv.Shutdown(shutCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
