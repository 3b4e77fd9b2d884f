package cmd

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/orionhq/riskgate/audit"
	"github.com/orionhq/riskgate/broker"
	"github.com/orionhq/riskgate/config"
	"github.com/orionhq/riskgate/ledger"
	"github.com/orionhq/riskgate/orders"
	"github.com/orionhq/riskgate/pnl"
	"github.com/orionhq/riskgate/risk"
	"github.com/orionhq/riskgate/store"
)

// app wires the full stack from configuration. Broker and market-data
// collaborators default to nil; the serve path injects real ones when
// the deployment provides them.
type app struct {
	cfg        *config.Config
	store      *store.Store
	journal    *audit.JSONL
	presets    *risk.PresetStore
	evaluator  *risk.Evaluator
	ledger     *ledger.Ledger
	previewer  *orders.Previewer
	gatekeeper *orders.Gatekeeper
}

func buildApp(market broker.MarketData, brk broker.Broker) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	journal, err := audit.NewJSONL(cfg.Audit.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	var counter risk.RateCounter = risk.NewMemoryCounter()
	if cfg.Redis.Addr != "" {
		counter = risk.NewRedisCounter(redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr}))
	}

	presets := risk.NewPresetStore(st)
	eval := risk.NewEvaluator(presets, st, counter,
		pnl.FileSource{Dir: cfg.DataDir}, journal,
		risk.LoadCalendar(cfg.HolidayFile), cfg.AllowOverrides)

	led := ledger.New(st)
	prev := orders.NewPreviewer(eval, market)
	gate := orders.NewGatekeeper(prev, led, brk)

	return &app{
		cfg:        cfg,
		store:      st,
		journal:    journal,
		presets:    presets,
		evaluator:  eval,
		ledger:     led,
		previewer:  prev,
		gatekeeper: gate,
	}, nil
}

func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		fmt.Printf("close audit journal: %v\n", err)
	}
	if err := a.store.Close(); err != nil {
		fmt.Printf("close store: %v\n", err)
	}
}
