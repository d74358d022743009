// cmd/tools/pacing-refresh/main.go

// pacing-refresh recalculates stored pacing scores from current budget
// state. Run it from cron after the view-consumption rollup, or ad hoc with
// -id after a manual budget change.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"premium-listings/internal/common/config"
	"premium-listings/internal/common/database"
	"premium-listings/internal/common/logger"
	"premium-listings/internal/listing/pacing"
)

func main() {
	var (
		advertiserID    = flag.Int64("id", 0, "Refresh a single advertiser ID (0 = all)")
		premiumPlusOnly = flag.Bool("premium-plus-only", true, "Restrict the batch run to Premium+ advertisers")
		batchSize       = flag.Int("batch-size", 50, "Rows per batch in the full run")
		timeout         = flag.Duration("timeout", 10*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres connection failed: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := pacing.NewStore(pg.GetDB(), log)

	if *advertiserID > 0 {
		score, err := store.Refresh(ctx, *advertiserID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("advertiser %d: pacing score %d\n", *advertiserID, score)
		return
	}

	stats, err := store.RefreshAll(ctx, *premiumPlusOnly, *batchSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch refresh aborted: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
	if len(stats.Errors) > 0 {
		os.Exit(1)
	}
}
