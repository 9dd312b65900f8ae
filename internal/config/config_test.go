package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
site:
  public_url: https://cards.example.org
bot:
  username: examplebot
  admin_chat_ids: [11, 22]
turnstile:
  hostname: cards.example.org
exchange:
  hold_duration: 30m
  max_cart_size: 5
maintenance:
  interval: 90s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Site.PublicURL != "https://cards.example.org" {
		t.Fatalf("unexpected public url: %s", cfg.Site.PublicURL)
	}
	if cfg.Bot.Username != "examplebot" {
		t.Fatalf("unexpected bot username: %s", cfg.Bot.Username)
	}
	if len(cfg.Bot.AdminChatIDs) != 2 || cfg.Bot.AdminChatIDs[0] != 11 {
		t.Fatalf("unexpected admin chat ids: %v", cfg.Bot.AdminChatIDs)
	}
	if cfg.Turnstile.Hostname != "cards.example.org" {
		t.Fatalf("unexpected turnstile hostname: %s", cfg.Turnstile.Hostname)
	}
	if cfg.Exchange.HoldDuration != 30*time.Minute {
		t.Fatalf("unexpected hold duration: %s", cfg.Exchange.HoldDuration)
	}
	if cfg.Exchange.MaxCartSize != 5 {
		t.Fatalf("unexpected max cart size: %d", cfg.Exchange.MaxCartSize)
	}
	if cfg.Maintenance.Interval != 90*time.Second {
		t.Fatalf("unexpected maintenance interval: %s", cfg.Maintenance.Interval)
	}

	if cfg.Exchange.DedupWindow != 20*time.Minute {
		t.Fatalf("dedup window default should stay 20m, got %s", cfg.Exchange.DedupWindow)
	}
	if cfg.Exchange.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl default should stay 24h, got %s", cfg.Exchange.TokenTTL)
	}
	if cfg.Turnstile.VerifyURL == "" {
		t.Fatalf("turnstile verify url default should not be empty")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Exchange.HoldDuration != 15*time.Minute {
		t.Fatalf("unexpected default hold duration: %s", cfg.Exchange.HoldDuration)
	}
	if cfg.Exchange.MaxCartSize != 10 {
		t.Fatalf("unexpected default max cart size: %d", cfg.Exchange.MaxCartSize)
	}
	if cfg.Maintenance.Interval != 5*time.Minute {
		t.Fatalf("unexpected default maintenance interval: %s", cfg.Maintenance.Interval)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
}

func TestEnvOverridesAndAdminFallbacks(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ADMIN_CHAT_IDS", "100, 200,300")
	t.Setenv("ADMIN_CHAT_ID", "100")
	t.Setenv("TG_WEBHOOK_SECRET", "hook-secret")
	t.Setenv("HOLD_DURATION", "7m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if len(cfg.Bot.AdminChatIDs) != 3 {
		t.Fatalf("unexpected admin list: %v", cfg.Bot.AdminChatIDs)
	}
	if !cfg.Bot.IsAdmin(200) || cfg.Bot.IsAdmin(999) {
		t.Fatalf("admin membership check failed")
	}
	if cfg.Bot.PrimaryAdminID() != 100 {
		t.Fatalf("unexpected primary admin: %d", cfg.Bot.PrimaryAdminID())
	}
	if cfg.Bot.WebhookSecret != "hook-secret" {
		t.Fatalf("unexpected webhook secret: %s", cfg.Bot.WebhookSecret)
	}
	if cfg.Exchange.HoldDuration != 7*time.Minute {
		t.Fatalf("unexpected hold duration override: %s", cfg.Exchange.HoldDuration)
	}
}

func TestAdminsFallsBackToPrimary(t *testing.T) {
	bot := BotConfig{PrimaryAdmin: 77}
	admins := bot.Admins()
	if len(admins) != 1 || admins[0] != 77 {
		t.Fatalf("unexpected admins fallback: %v", admins)
	}
	if bot.PrimaryAdminID() != 77 {
		t.Fatalf("unexpected primary admin fallback: %d", bot.PrimaryAdminID())
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "HTTP_ADDR", "LOG_LEVEL", "POSTGRES_DSN",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_USE_SSL",
		"TG_BOT_TOKEN", "TG_BOT_USERNAME", "TG_WEBHOOK_SECRET",
		"ADMIN_CHAT_IDS", "ADMIN_CHAT_ID", "PUBLIC_SITE_URL",
		"TURNSTILE_SECRET", "TURNSTILE_SITE_KEY", "TURNSTILE_HOSTNAME", "TURNSTILE_VERIFY_URL",
		"HOLD_DURATION", "DEDUP_WINDOW", "ACTION_TOKEN_TTL", "MAX_CART_SIZE",
		"REQUESTS_PER_MINUTE", "REQUESTS_PER_10SEC", "MAINTENANCE_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}
