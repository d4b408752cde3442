package main

import (
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/moreal/NineChronicles.EthBridge/cmd"
	"github.com/moreal/NineChronicles.EthBridge/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "NINE_BRIDGE_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// An optional configuration file can back the environment;
	// environment variables always win.
	if configFile := viper.GetString(ENV_CONFIG_FILE_PATH); configFile != "" {
		if !cmd.FileExists(configFile) {
			fmt.Printf("Bridge configuration file not found: %s\n", configFile)
			os.Exit(-1)
		}
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Error reading configuration file: %s\n", err)
			os.Exit(-1)
		}
	}

	if viper.GetBool("DEBUG") {
		logconfig.ConfigDebugLogger()
	} else {
		logconfig.ConfigProductionLogger()
	}

	bsc, err := cmd.PrepareBridgeServerConfig()
	if err != nil {
		logger.Errorf("invalid bridge configuration: %v", err)
		os.Exit(-1)
	}

	logger.Info("Starting bridge server... press Ctrl+C to stop")
	// Start server and block.
	cmd.StartBridgeServerAndWait(bsc)
}
