package config

import "maps"

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log: credentials
// are masked and slices and maps are copied.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.CoinMarketCap.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKeyHash)
	// RPC URLs often embed a provider key in the path.
	redact(&out.Pancake.RPCURL)

	out.Symbols = append([]string(nil), cfg.Symbols...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Pancake.Tokens = maps.Clone(cfg.Pancake.Tokens)
	if cfg.DexScreener.Tokens != nil {
		out.DexScreener.Tokens = make(map[string][]DexToken, len(cfg.DexScreener.Tokens))
		for chain, tokens := range cfg.DexScreener.Tokens {
			out.DexScreener.Tokens[chain] = append([]DexToken(nil), tokens...)
		}
	}
	out.Arbitrage.Pairs = make([][]string, len(cfg.Arbitrage.Pairs))
	for i, p := range cfg.Arbitrage.Pairs {
		out.Arbitrage.Pairs[i] = append([]string(nil), p...)
	}
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
