package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mamapay/ledgerwallet/internal/asset"
	"github.com/mamapay/ledgerwallet/internal/config"
	"github.com/mamapay/ledgerwallet/internal/directory"
	"github.com/mamapay/ledgerwallet/internal/keypair"
	"github.com/mamapay/ledgerwallet/internal/ledger"
	"github.com/mamapay/ledgerwallet/internal/middleware"
	"github.com/mamapay/ledgerwallet/internal/notification"
	"github.com/mamapay/ledgerwallet/internal/payment"
	"github.com/mamapay/ledgerwallet/internal/provision"
	"github.com/mamapay/ledgerwallet/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes. Ledger and
// Registry may be left nil to build them from configuration; tests inject a
// sandbox ledger instead.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Ledger   ledger.Client
	Registry *asset.Registry
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	client, registry := d.Ledger, d.Registry
	if client == nil || registry == nil {
		var err error
		client, registry, err = buildLedgerEnv(d.Cfg)
		if err != nil {
			return err
		}
	}

	seedVault, err := vault.New(d.Cfg.VaultSecret)
	if err != nil {
		return err
	}

	var dir directory.Repository
	if d.DB != nil {
		dir = directory.NewPostgresRepository(d.DB)
	} else {
		dir = directory.NewMemoryRepository()
	}

	var status provision.StatusStore
	if d.Cache != nil {
		status = provision.NewRedisStatusStore(d.Cache)
	} else {
		status = provision.NewMemoryStatusStore()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	provisionSvc := provision.NewService(dir, seedVault, client, registry, status, notifier, d.Logger, provision.Settings{
		NativeStartingBalance: d.Cfg.NativeStartingBalance,
		SeedFundingAmount:     d.Cfg.SeedFundingAmount,
		Retries:               d.Cfg.ProvisionRetries,
	})

	var runner *provision.Runner
	if d.Cfg.ProvisionMode == config.ModeAsync {
		runner = provision.NewRunner(provisionSvc, d.Logger, d.Cfg.ProvisionWorkers, 64)
		app.Hooks().OnShutdown(func() error {
			runner.Close()
			return nil
		})
	}

	paymentSvc := payment.NewService(dir, seedVault, client, registry, notifier, d.Logger)

	provisionHandler := provision.NewHandler(provisionSvc, runner, status)
	paymentHandler := payment.NewHandler(paymentSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	api.Get("/info", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"info": fmt.Sprintf("This is the %s user and payment API", d.Cfg.AppName)})
	})

	RegisterSignupRoutes(api, provisionHandler)
	RegisterUserRoutes(api, dir)
	RegisterPaymentRoutes(api, paymentHandler)

	return nil
}

// buildLedgerEnv resolves the ledger client and asset registry from
// configuration. Development runs without configured custodial keys get an
// in-process sandbox ledger with generated keys instead.
func buildLedgerEnv(cfg config.Config) (ledger.Client, *asset.Registry, error) {
	if cfg.IssuerAddress != "" && cfg.FunderSeed != "" && cfg.BankSeed != "" {
		registry, err := asset.NewRegistry(cfg.AssetCode, cfg.IssuerAddress, cfg.FunderSeed, cfg.BankSeed)
		if err != nil {
			return nil, nil, err
		}
		return ledger.NewHorizonClient(cfg.HorizonURL, cfg.Network), registry, nil
	}
	if !cfg.IsDev() {
		return nil, nil, fmt.Errorf("custodial keys are required when APP_ENV=%s", cfg.AppEnv)
	}
	return devLedgerEnv(cfg)
}

func devLedgerEnv(cfg config.Config) (ledger.Client, *asset.Registry, error) {
	funder, err := keypair.Random()
	if err != nil {
		return nil, nil, err
	}
	issuer, err := keypair.Random()
	if err != nil {
		return nil, nil, err
	}
	bank, err := keypair.Random()
	if err != nil {
		return nil, nil, err
	}

	sandbox := ledger.NewSandbox(cfg.Network)
	if err := sandbox.Genesis(funder.Address(), "1000000"); err != nil {
		return nil, nil, err
	}
	if err := sandbox.Genesis(issuer.Address(), "1000"); err != nil {
		return nil, nil, err
	}
	if err := sandbox.Genesis(bank.Address(), "1000"); err != nil {
		return nil, nil, err
	}
	sandbox.RequireAuth(issuer.Address())
	sandbox.AddSigner(issuer.Address(), bank.Address())

	devAsset := ledger.Asset{Code: cfg.AssetCode, Issuer: issuer.Address()}
	if err := sandbox.SetTrustline(bank.Address(), devAsset, "100000000", true); err != nil {
		return nil, nil, err
	}

	registry, err := asset.NewRegistry(cfg.AssetCode, issuer.Address(), funder.Seed(), bank.Seed())
	if err != nil {
		return nil, nil, err
	}
	return sandbox, registry, nil
}
