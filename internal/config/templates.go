package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Basket Index Configuration

[index]
# First date used when a request has no start (YYYY-MM-DD). Empty = one year back.
default_start = ""
# Reference index plotted next to every basket
default_benchmark = "^NSEI"

[provider]
# Daily price source: "yahoo" or "kite"
prices = "yahoo"
# Share counts: "live" (provider lookup, static table fallback) or "static"
fundamentals = "live"
yahoo_base_url = "https://query1.finance.yahoo.com"
timeout = "20s"
# Requests per second against the price provider
rate_limit = 4.0
concurrency = 4
# Consecutive upstream failures before calls are skipped (0 disables), and for how long
breaker_threshold = 5
breaker_cooldown = "30s"

[cache]
# Fundamentals cache: "memory", "redis" or "none"
backend = "memory"
ttl = "12h"
redis_addr = ""
redis_password = ""
redis_db = 0

[store]
# SQLite file holding the static fundamentals table (default: <config dir>/fundamentals.db)
path = ""
# Age after which 'fundamentals list' reports the table as stale
stale_after = "168h"

[server]
addr = ":5000"
read_timeout = "30s"
write_timeout = "90s"
request_timeout = "60s"

[logging]
level = "info"
file = true

[baskets.green]
title = "India Green Energy Index"
benchmark = "^NSEI"
tickers = [
  "ACMESOLAR.NS", "ADANIGREEN.NS", "ALPEXSOLAR.NS", "BORORENEW.NS",
  "EMMVEE.NS", "INOXWIND.NS", "KPIGREEN.NS", "NTPCGREEN.NS",
  "OSWALPUMPS.NS", "PACEDIGITK.NS", "PREMIERENE.NS", "SHAKTIPUMP.NS",
  "SOLEX.NS", "SWSOLAR.NS", "SUZLON.NS", "TATAPOWER.NS",
  "VIKRAMSOLR.NS", "WAAREEENER.NS", "WAAREERTL.NS",
]

[[baskets.green.meta]]
ticker = "SUZLON.NS"
name = "Suzlon Energy"
sector = "Wind"

[[baskets.green.meta]]
ticker = "TATAPOWER.NS"
name = "Tata Power"
sector = "Utilities"

[baskets.startup]
title = "India Startup Index"
benchmark = "^NSEI"
tickers = [
  "PWL.BO", "PINELABS.NS", "YATRA.NS", "IDEAFORGE.NS", "SHADOWFAX.NS",
  "AMAGI.NS", "GROWW.BO", "LENSKART.NS", "URBANCO.NS", "MEESHO.NS",
  "OLAELEC.NS", "SWIGGY.NS", "FIRSTCRY.NS", "GODIGIT.NS", "HONASA.NS",
  "INDGN.NS", "TBOTEK.NS", "IXIGO.NS", "AWFIS.NS", "ZAGGLE.NS",
  "ENTERO.NS", "MEDIASSIST.NS", "BLUESTONE.NS", "WEWORK.NS", "BLACKBUCK.NS",
]

[[baskets.startup.meta]]
ticker = "SWIGGY.NS"
name = "Swiggy"
sector = "Food Tech"

[[baskets.startup.meta]]
ticker = "OLAELEC.NS"
name = "Ola Electric Mobility"
sector = "EV"
`

const credentialsTemplate = `# Basket Index Credentials
# WARNING: Keep this file secure and never commit it to version control

[kite]
# Only needed when provider.prices = "kite"
api_key = ""
access_token = ""
`

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate, 0644)
}

func createTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
}

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}
