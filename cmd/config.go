package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// PrepareBridgeServerConfig reads configuration variables and returns a
// BridgeServerConfig. Every missing required key is collected so the
// operator sees the whole list at once instead of one key per restart.
func PrepareBridgeServerConfig() (*BridgeServerConfig, error) {
	viper.SetDefault("NINE_CONFIRMATIONS", 10)
	viper.SetDefault("ETH_CONFIRMATIONS", 10)
	viper.SetDefault("PLANET_ID", "0x100000000001")
	viper.SetDefault("NCG_FEE_RATIO", "0.01")
	viper.SetDefault("GAS_TIP_RATIO", "1.0")
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("OPENSEARCH_INDEX", "bridge-exchange")
	viper.SetDefault("SENTRY_ENVIRONMENT", "production")

	var missing []string
	need := func(key string) string {
		value := viper.GetString(key)
		if value == "" {
			missing = append(missing, key)
		}
		return value
	}

	bsc := &BridgeServerConfig{
		// chain-n side
		NineGraphqlEndpoint: need("NINE_GRAPHQL_ENDPOINT"),
		NineStageEndpoints:  splitList(viper.GetString("NINE_STAGE_ENDPOINTS")),
		NineAuthToken:       viper.GetString("NINE_AUTH_TOKEN"),
		NineBridgeAddress:   need("NINE_BRIDGE_ADDRESS"),
		NcgMinterAddress:    need("NCG_MINTER_ADDRESS"),
		NineConfirmations:   viper.GetInt64("NINE_CONFIRMATIONS"),

		// chain-n signer
		KmsKeyId:       viper.GetString("KMS_KEY_ID"),
		KmsRegion:      viper.GetString("KMS_REGION"),
		NinePrivateKey: viper.GetString("NINE_PRIVATE_KEY"),

		// chain-e side
		EthRpcUrl:        need("ETH_RPC_URL"),
		WncgContractAddr: need("WNCG_CONTRACT_ADDRESS"),
		EthMinterPrivKey: need("ETH_MINTER_PRIVATE_KEY"),
		EthConfirmations: viper.GetInt64("ETH_CONFIRMATIONS"),
		GasTipRatio:      viper.GetString("GAS_TIP_RATIO"),
		GasPriceCap:      viper.GetString("GAS_PRICE_CAP"),
		PriorityFeeFloor: viper.GetString("PRIORITY_FEE_FLOOR"),

		// exchange policy
		PlanetId:        viper.GetString("PLANET_ID"),
		NcgMinimum:      need("NCG_MINIMUM"),
		NcgMaximum:      need("NCG_MAXIMUM"),
		NcgFeeRatio:     viper.GetString("NCG_FEE_RATIO"),
		BannedAddresses: splitList(viper.GetString("BANNED_ADDRESSES")),

		// state side
		HistoryDbPath: need("HISTORY_DB_PATH"),
		CursorDbPath:  need("CURSOR_DB_PATH"),

		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),

		// integrations
		SlackToken:          viper.GetString("SLACK_TOKEN"),
		SlackChannel:        viper.GetString("SLACK_CHANNEL"),
		PagerdutyRoutingKey: viper.GetString("PAGERDUTY_ROUTING_KEY"),
		OpensearchAddresses: splitList(viper.GetString("OPENSEARCH_ADDRESSES")),
		OpensearchUsername:  viper.GetString("OPENSEARCH_USERNAME"),
		OpensearchPassword:  viper.GetString("OPENSEARCH_PASSWORD"),
		OpensearchIndex:     viper.GetString("OPENSEARCH_INDEX"),
		SentryDsn:           viper.GetString("SENTRY_DSN"),
		SentryEnvironment:   viper.GetString("SENTRY_ENVIRONMENT"),

		// explorer links
		EtherscanBaseUrl: viper.GetString("ETHERSCAN_BASE_URL"),
		ExplorerBaseUrl:  viper.GetString("EXPLORER_BASE_URL"),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration keys: %s", strings.Join(missing, ", "))
	}

	// Exactly one signer flavor: KMS in production, a raw key for dev.
	hasKms := bsc.KmsKeyId != ""
	hasLocal := bsc.NinePrivateKey != ""
	switch {
	case hasKms && hasLocal:
		return nil, fmt.Errorf("configure either KMS_KEY_ID or NINE_PRIVATE_KEY, not both")
	case !hasKms && !hasLocal:
		return nil, fmt.Errorf("configure a signer: KMS_KEY_ID + KMS_REGION, or NINE_PRIVATE_KEY")
	case hasKms && bsc.KmsRegion == "":
		return nil, fmt.Errorf("KMS_KEY_ID is set but KMS_REGION is missing")
	}

	if bsc.SlackToken != "" && bsc.SlackChannel == "" {
		return nil, fmt.Errorf("SLACK_TOKEN is set but SLACK_CHANNEL is missing")
	}

	return bsc, nil
}

// splitList turns "a, b,c" into {"a", "b", "c"}. Empty input yields nil.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
