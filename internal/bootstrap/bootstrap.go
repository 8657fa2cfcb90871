// Package bootstrap is the composition root shared by every process in
// this service (the API process and each worker): it loads configuration,
// opens the database and cache connections, seeds deployment-specific
// chain/token/inventory rows, and wires every domain service. cmd/api and
// cmd/worker/* each call New once at startup and run only the background
// loops relevant to that process.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"cryptopay/config"
	"cryptopay/internal/conversation"
	"cryptopay/internal/crypto"
	"cryptopay/internal/database"
	"cryptopay/internal/gateway"
	"cryptopay/internal/inventory"
	"cryptopay/internal/order"
	"cryptopay/internal/pricing"
	"cryptopay/internal/referral"
	"cryptopay/internal/scheduler"
	"cryptopay/internal/voucher"
	"cryptopay/internal/wallet"
	"cryptopay/internal/webhook"
	"cryptopay/pkg/cache"
	"cryptopay/pkg/logger"
	streams "cryptopay/pkg/queue"

	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// App holds every wired domain service a process might need. Not every
// process uses every field — a worker typically only touches a handful.
type App struct {
	Cfg config.ApiConfig
	DB  *database.DB

	Orders       *order.Service
	Referrals    *referral.Service
	Vouchers     *voucher.Service
	Inventory    *inventory.Service
	Quotes       *pricing.QuoteService
	PriceCache   *pricing.Cache
	Wallet       *wallet.Manager
	Gateway      *gateway.Client
	Webhook      *webhook.Reconciler
	Conversation *conversation.Service
	Queue        *streams.StreamQueue
	Scheduler    *scheduler.Scheduler

	TrackedSymbols   []string
	InventoryTargets []scheduler.InventoryTarget
	ActiveChainCount int
}

// Root finds the repository root by walking up depth directories from this
// file's own source directory (internal/bootstrap), located with
// runtime.Caller(0), instead of from the process's working directory.
func Root(depth int) string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename) // .../internal/bootstrap
	for i := 0; i < depth; i++ {
		dir = filepath.Dir(dir)
	}
	return dir
}

// New loads configuration from root and wires every domain service.
func New(ctx context.Context) (*App, error) {
	root := Root(2) // internal/bootstrap -> internal -> repo root

	var cfg config.ApiConfig
	configPath := config.Path(root).Join("config.toml")
	if err := config.Load(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to load config: %w", err)
	}

	chainsPath := config.Path(root).Join("chains.toml")
	var chainsCfg config.ChainsConfig
	if err := config.Load(chainsPath, &chainsCfg); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to load chains: %w", err)
	}

	var redisCfg cache.Config
	if err := copier.Copy(&redisCfg, &cfg.Redis); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to copy cache config: %w", err)
	}
	if err := cache.Init(redisCfg); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to initialize cache: %w", err)
	}

	var dbCfg database.Config
	if err := copier.Copy(&dbCfg, &cfg.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to copy database config: %w", err)
	}
	db, err := database.NewDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: database ping failed: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to run migrations: %w", err)
	}

	chainRepo := database.NewChainRepository(db)
	tokenRepo := database.NewTokenRepository(db)
	auditRepo := database.NewAuditRepository(db)
	invRepo := database.NewInventoryRepository(db, auditRepo)
	voucherRepo := database.NewVoucherRepository(db)
	orderRepo := database.NewOrderRepository(db)
	referralRepo := database.NewReferralRepository(db)
	settingRepo := database.NewSettingRepository(db)

	if err := seedChains(ctx, db, chainsCfg, cfg.Wallet.KeyPassword); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to seed chains: %w", err)
	}
	if err := seedDefaultSettings(ctx, settingRepo, cfg.Pricing.DefaultMarkupPercent, cfg.Pricing.DefaultUsdIdrRate); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to seed default settings: %w", err)
	}

	activeChains, err := chainRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: failed to list active chains: %w", err)
	}

	keystore := wallet.NewKeystore(cfg.Wallet.KeyPassword)
	if err := keystore.Refresh(activeChains); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to load chain signing keys: %w", err)
	}

	walletAddresses := make(map[string]string, len(chainsCfg.Chains))
	for _, c := range chainsCfg.Chains {
		walletAddresses[c.Slug] = c.WalletAddress
	}

	adapters, symbolByChain, err := buildChainAdapters(ctx, activeChains, keystore, tokenRepo, walletAddresses)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: failed to build chain adapters: %w", err)
	}
	walletManager := wallet.NewManager(adapters)

	gatewayClient := gateway.NewClient(cfg.PaymentGateway.BaseURL, cfg.PaymentGateway.ServerKey, cfg.PaymentGateway.Environment, nil)

	priceProvider, err := pricing.NewProvider(cfg.Pricing.Provider, "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: failed to initialize price provider: %w", err)
	}
	priceCache := pricing.NewCache(priceProvider)

	inventoryService := inventory.NewService(invRepo, walletManager)
	fxRefresher := pricing.NewFXRefresher(pricing.NewFXProvider("", nil), settingRepo)
	quoteService := pricing.NewQuoteService(priceCache, tokenRepo, settingRepo, fxRefresher, inventoryService)
	voucherService := voucher.NewService(voucherRepo)

	queue := streams.NewStreamQueue(cache.Client)

	orderService := order.NewService(db, orderRepo, inventoryService, voucherService, quoteService, walletManager, gatewayClient, queue, chainRepo, auditRepo, loggingOrderNotifier{})

	referralCfg := referral.Config{
		ValidationThreshold: cfg.Referral.ValidationThreshold,
		RewardValueIDR:      cfg.Referral.RewardValueIDR,
		RewardExpiryDays:    cfg.Referral.RewardExpiryDays,
		MilestoneEvery:      cfg.Referral.MilestoneEvery,
		MilestoneValueIDR:   cfg.Referral.MilestoneValueIDR,
		MilestoneExpiryDays: cfg.Referral.MilestoneExpiryDays,
	}
	referralService := referral.NewService(referralRepo, orderRepo, voucherRepo, loggingNotifier{}, referralCfg)

	webhookReconciler := webhook.NewReconciler(orderRepo, auditRepo, gatewayClient, orderService)
	conversationService := conversation.NewService()

	targets := make([]scheduler.InventoryTarget, 0, len(symbolByChain))
	trackedSymbols := make([]string, 0, len(symbolByChain))
	for chainSlug, symbol := range symbolByChain {
		targets = append(targets, scheduler.InventoryTarget{Chain: chainSlug, Symbol: symbol})
		trackedSymbols = append(trackedSymbols, symbol)
	}

	sched := scheduler.New(scheduler.BuildJobs(scheduler.Deps{
		Orders:    orderService,
		Referrals: referralService,
		Vouchers:  voucherService,
		Inventory: inventoryService,
		Queue:     queue,
		Targets:   targets,
	}))

	return &App{
		Cfg:              cfg,
		DB:               db,
		Orders:           orderService,
		Referrals:        referralService,
		Vouchers:         voucherService,
		Inventory:        inventoryService,
		Quotes:           quoteService,
		PriceCache:       priceCache,
		Wallet:           walletManager,
		Gateway:          gatewayClient,
		Webhook:          webhookReconciler,
		Conversation:     conversationService,
		Queue:            queue,
		Scheduler:        sched,
		TrackedSymbols:   trackedSymbols,
		InventoryTargets: targets,
		ActiveChainCount: len(activeChains),
	}, nil
}

// Close releases the database and cache connections. Call via defer.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if err := cache.Close(); err != nil {
		logger.Warn("failed to close cache connection", zap.Error(err))
	}
}

// RunPriceRefresher starts the REST price-refresh loop, blocking until ctx
// is cancelled. Callers run this in its own goroutine.
func (a *App) RunPriceRefresher(ctx context.Context) {
	pricing.NewRestRefresher(a.PriceCache, a.TrackedSymbols, 60*time.Second).Run(ctx)
}

// RunStreamWriter starts the websocket price-streaming writer if a stream
// URL is configured; it's a no-op otherwise. Blocks until ctx is cancelled.
func (a *App) RunStreamWriter(ctx context.Context) {
	if a.Cfg.Pricing.StreamURL == "" {
		return
	}
	pricing.NewStreamWriter(a.Cfg.Pricing.StreamURL, a.PriceCache, a.TrackedSymbols).Run(ctx)
}

// buildChainAdapters constructs one wallet.ChainAdapter per active chain
// and returns the native-symbol-per-chain map the scheduler's inventory
// sync jobs and the price refresher both need.
func buildChainAdapters(
	ctx context.Context,
	chains []*database.Chain,
	keystore *wallet.Keystore,
	tokens *database.TokenRepository,
	walletAddresses map[string]string,
) (map[string]wallet.ChainAdapter, map[string]string, error) {
	adapters := make(map[string]wallet.ChainAdapter, len(chains))
	symbols := make(map[string]string, len(chains))

	for _, c := range chains {
		key, err := keystore.Key(c.Slug)
		if err != nil {
			return nil, nil, err
		}

		native, err := tokens.GetNative(ctx, c.Slug)
		if err != nil {
			return nil, nil, fmt.Errorf("no native token registered for chain %s: %w", c.Slug, err)
		}
		symbols[c.Slug] = native.Symbol

		switch c.Type {
		case database.ChainEVM:
			chainID := int64(0)
			if c.ChainID != nil {
				chainID = *c.ChainID
			}
			adapter, err := wallet.NewEVMAdapter(ctx, c.RPCURL, chainID, key, c.Confirmations, c.GasBumpPercent)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to build evm adapter for chain %s: %w", c.Slug, err)
			}
			adapters[c.Slug] = adapter

		case database.ChainSolana:
			adapter, err := wallet.NewSolanaAdapter(c.RPCURL, key)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to build solana adapter for chain %s: %w", c.Slug, err)
			}
			adapters[c.Slug] = adapter

		case database.ChainSui:
			adapter, err := wallet.NewSuiAdapter(c.RPCURL, walletAddresses[c.Slug], key)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to build sui adapter for chain %s: %w", c.Slug, err)
			}
			adapters[c.Slug] = adapter

		default:
			return nil, nil, fmt.Errorf("unknown chain type %q for chain %s", c.Type, c.Slug)
		}
	}

	return adapters, symbols, nil
}

// seedChains upserts every configured chain, its native token, and an
// initial zero-balance inventory row, encrypting each chain's signing-key
// indirection string with the wallet key password before it's persisted.
// Existing rows keep their active flag untouched so an operator's
// incident-response SetActive(false) survives a redeploy.
func seedChains(ctx context.Context, db *database.DB, chains config.ChainsConfig, keyPassword string) error {
	chainRepo := database.NewChainRepository(db)
	tokenRepo := database.NewTokenRepository(db)
	invRepo := database.NewInventoryRepository(db, nil)

	for _, c := range chains.Chains {
		blob, err := crypto.EncryptBlob("ENV:"+c.SigningKeyEnvName, keyPassword)
		if err != nil {
			return fmt.Errorf("failed to encrypt signing key reference for chain %s: %w", c.Slug, err)
		}

		gasBump := c.GasBumpPercent
		if gasBump <= 0 {
			gasBump = 10
		}

		chainType := database.ChainType(strings.ToUpper(c.Type))
		row := &database.Chain{
			Slug:             c.Slug,
			Type:             chainType,
			RPCURL:           c.RpcURL,
			ExplorerURL:      c.ExplorerURL,
			EncryptedKeyBlob: blob,
			Active:           true,
			Confirmations:    c.Confirmations,
			GasBumpPercent:   gasBump,
		}
		if chainType == database.ChainEVM {
			chainID := c.ChainID
			row.ChainID = &chainID
		}

		if err := chainRepo.Upsert(ctx, row); err != nil {
			return fmt.Errorf("failed to upsert chain %s: %w", c.Slug, err)
		}

		if err := tokenRepo.Upsert(ctx, &database.Token{
			Chain:    c.Slug,
			Symbol:   c.NativeSymbol,
			IsNative: true,
			Decimals: c.Decimals,
			Active:   true,
		}); err != nil {
			return fmt.Errorf("failed to upsert native token for chain %s: %w", c.Slug, err)
		}

		if err := invRepo.EnsureRow(ctx, c.Slug, c.NativeSymbol); err != nil {
			return fmt.Errorf("failed to ensure inventory row for chain %s: %w", c.Slug, err)
		}
	}

	return nil
}

// seedDefaultSettings writes the default FX rate and markup from config as
// the initial settings rows, only if each key is still unset, so an
// operator's runtime override (via the admin surface, out of scope here)
// is never clobbered by a redeploy.
func seedDefaultSettings(ctx context.Context, repo *database.SettingRepository, defaultMarkupPercent, defaultUsdIdrRate float64) error {
	if _, err := repo.Get(ctx, database.SettingDefaultMarkupPercent); err == database.ErrSettingNotFound {
		if err := repo.Upsert(ctx, database.SettingDefaultMarkupPercent, decimal.NewFromFloat(defaultMarkupPercent).String()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err := repo.Get(ctx, database.SettingFxRateUSDIDR); err == database.ErrSettingNotFound {
		if err := repo.Upsert(ctx, database.SettingFxRateUSDIDR, decimal.NewFromFloat(defaultUsdIdrRate).String()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// loggingNotifier satisfies referral.Notifier without delivering anything —
// the chat-bot messaging surface this would hand off to is an external
// collaborator out of scope here (SPEC §2).
type loggingNotifier struct{}

func (loggingNotifier) NotifyReferralReward(ctx context.Context, referrerUserID, voucherCode string) error {
	logger.Info("referral reward ready for delivery",
		zap.String("referrer_user_id", referrerUserID), zap.String("voucher_code", voucherCode))
	return nil
}

// loggingOrderNotifier satisfies order.OrderNotifier the same way
// loggingNotifier satisfies referral.Notifier — the conversational checkout
// surface this would hand off to is out of scope here (SPEC §2).
type loggingOrderNotifier struct{}

func (loggingOrderNotifier) NotifyOrderSuccess(ctx context.Context, userID, orderID, txHash string) error {
	logger.Info("order success ready for delivery",
		zap.String("user_id", userID), zap.String("order_id", orderID), zap.String("tx_hash", txHash))
	return nil
}
