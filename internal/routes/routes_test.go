package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/mamapay/ledgerwallet/internal/config"
	"github.com/mamapay/ledgerwallet/internal/logging"
)

func testConfig() config.Config {
	return config.Config{
		AppName:               "LedgerWallet",
		AppEnv:                "development",
		Port:                  "0",
		LogLevel:              "error",
		VaultSecret:           "test-vault-secret",
		Network:               "Test Network ; e2e",
		AssetCode:             "USD",
		NativeStartingBalance: "999",
		SeedFundingAmount:     "50",
		// Inline keeps the test deterministic: signup returns only after the
		// ledger workflow resolved.
		ProvisionMode:    config.ModeInline,
		ProvisionWorkers: 1,
	}
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: testConfig(), Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp.StatusCode, decoded
}

func signup(t *testing.T, app *fiber.App, username string) map[string]any {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/signup", fiber.Map{"username": username})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %v", username, status, body)
	}
	return body
}

func TestSignupProvisionsAndPays(t *testing.T) {
	app := setupApp(t)

	alice := signup(t, app, "alice")
	if key, _ := alice["public_key"].(string); key == "" {
		t.Fatalf("signup response missing public key: %v", alice)
	}
	provisioning, _ := alice["provisioning"].(map[string]any)
	if provisioning["state"] != "provisioned" {
		t.Fatalf("expected inline signup to finish provisioning, got %v", provisioning)
	}

	signup(t, app, "bob")

	// Lookup returns the stored record with sealed key material.
	status, record := doJSON(t, app, fiber.MethodGet, "/api/v1/users/alice", nil)
	if status != http.StatusOK {
		t.Fatalf("lookup alice: status %d", status)
	}
	publicKey, _ := record["public_key"].(string)
	encryptedSeed, _ := record["encrypted_seed"].(string)
	if publicKey == "" || encryptedSeed == "" {
		t.Fatalf("record missing key material: %v", record)
	}
	if !strings.HasPrefix(encryptedSeed, "v1:") {
		t.Fatalf("seed does not look sealed: %q", encryptedSeed)
	}

	// A payment within the seeded balance settles with the memo echoed back.
	status, receipt := doJSON(t, app, fiber.MethodPost, "/api/v1/payments", fiber.Map{
		"amount": "10", "sender": "alice", "recipient": "bob", "memo": "rent",
	})
	if status != http.StatusCreated {
		t.Fatalf("payment: status %d body %v", status, receipt)
	}
	if id, _ := receipt["id"].(string); id == "" {
		t.Fatalf("expected settlement id, got %v", receipt)
	}
	if receipt["memo"] != "rent" {
		t.Fatalf("expected memo rent, got %v", receipt["memo"])
	}

	// A payment past the available balance surfaces the ledger's code.
	status, failure := doJSON(t, app, fiber.MethodPost, "/api/v1/payments", fiber.Map{
		"amount": "10000000", "sender": "alice", "recipient": "bob",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("oversized payment: status %d body %v", status, failure)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	app := setupApp(t)

	signup(t, app, "alice")
	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/signup", fiber.Map{"username": "alice"})
	if status != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", status)
	}
}

func TestProvisioningStatusEndpoint(t *testing.T) {
	app := setupApp(t)

	signup(t, app, "alice")
	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/users/alice/provisioning", nil)
	if status != http.StatusOK || body["state"] != "provisioned" {
		t.Fatalf("expected provisioned status, got %d %v", status, body)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/users/ghost/provisioning", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", status)
	}
}

func TestCreditAndDebit(t *testing.T) {
	app := setupApp(t)

	signup(t, app, "carol")

	status, receipt := doJSON(t, app, fiber.MethodPost, "/api/v1/credits", fiber.Map{
		"amount": "25", "username": "carol",
	})
	if status != http.StatusCreated {
		t.Fatalf("credit: status %d body %v", status, receipt)
	}
	if id, _ := receipt["id"].(string); id == "" {
		t.Fatalf("expected settlement id, got %v", receipt)
	}

	status, receipt = doJSON(t, app, fiber.MethodPost, "/api/v1/debits", fiber.Map{
		"amount": "30", "username": "carol",
	})
	if status != http.StatusCreated {
		t.Fatalf("debit: status %d body %v", status, receipt)
	}
}

func TestPaymentUnknownUser(t *testing.T) {
	app := setupApp(t)

	signup(t, app, "alice")
	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/payments", fiber.Map{
		"amount": "10", "sender": "alice", "recipient": "ghost",
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestListUsers(t *testing.T) {
	app := setupApp(t)

	signup(t, app, "alice")
	signup(t, app, "bob")

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/users", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	defer resp.Body.Close()

	var users []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}
