// Server = chain-n side + chain-e side + stores + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/database"
	"github.com/moreal/NineChronicles.EthBridge/etherman"
	"github.com/moreal/NineChronicles.EthBridge/ethsync"
	"github.com/moreal/NineChronicles.EthBridge/gasprice"
	"github.com/moreal/NineChronicles.EthBridge/integration"
	"github.com/moreal/NineChronicles.EthBridge/monitor"
	"github.com/moreal/NineChronicles.EthBridge/nineman"
	"github.com/moreal/NineChronicles.EthBridge/ninesync"
	"github.com/moreal/NineChronicles.EthBridge/ninetxmanager"
	"github.com/moreal/NineChronicles.EthBridge/policy"
	"github.com/moreal/NineChronicles.EthBridge/reporter"
	"github.com/moreal/NineChronicles.EthBridge/signer"
	"github.com/moreal/NineChronicles.EthBridge/state"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// per-monitor poll and liveness config
	ninePollInterval = 10 * time.Second
	ethPollInterval  = 15 * time.Second
	stallThreshold   = 5 * time.Minute

	// shutdown config
	sentryFlushTimeout = 2 * time.Second
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BridgeServerConfig struct {
	// chain-n side
	NineGraphqlEndpoint string   // primary graphql endpoint (read + write)
	NineStageEndpoints  []string // extra endpoints the signed tx is staged to
	NineAuthToken       string   // optional bearer token for the graphql node
	NineBridgeAddress   string   // custodial address holding the deposited NCG
	NcgMinterAddress    string   // minter address in the NCG currency definition
	NineConfirmations   int64    // confirmation depth on chain-n

	// chain-n signer (exactly one of the two flavors)
	KmsKeyId       string // AWS KMS key id of the custodial key
	KmsRegion      string // AWS region hosting the key
	NinePrivateKey string // hex private key, development setups only

	// chain-e side
	EthRpcUrl        string // json rpc url
	WncgContractAddr string // deployed wNCG ERC-20 contract
	EthMinterPrivKey string // private key of the minting account
	EthConfirmations int64  // confirmation depth on chain-e
	GasTipRatio      string // multiplier over the suggested gas price, e.g. "1.3"
	GasPriceCap      string // hard cap in wei, empty = uncapped
	PriorityFeeFloor string // EIP-1559 tip in wei, empty = legacy txs

	// exchange policy
	PlanetId        string   // planet id burns must address, e.g. "0x100000000001"
	NcgMinimum      string   // smallest exchangeable amount in NCG
	NcgMaximum      string   // largest exchangeable amount in NCG
	NcgFeeRatio     string   // fee ratio in [0, 1)
	BannedAddresses []string // senders refused by the bridge

	// state side
	HistoryDbPath string // exchange history sqlite file
	CursorDbPath  string // monitor cursor sqlite file

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	// integrations, all optional (empty = disabled)
	SlackToken          string
	SlackChannel        string
	PagerdutyRoutingKey string
	OpensearchAddresses []string
	OpensearchUsername  string
	OpensearchPassword  string
	OpensearchIndex     string
	SentryDsn           string
	SentryEnvironment   string

	// explorer link bases used in chat messages
	EtherscanBaseUrl string
	ExplorerBaseUrl  string
}

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	// chain clients
	MyNineMan  *nineman.NineMan
	MyEtherman *etherman.Etherman

	// serialized chain-n write path
	MyTxManager *ninetxmanager.TxManager

	// stores
	MyHistoryDb *state.HistoryDB
	MyCursorDb  *state.CursorDB

	// monitors, one per watched chain
	MyNineMonitor *monitor.Monitor[nineman.NCGTransferredEvent]
	MyEthMonitor  *monitor.Monitor[etherman.BurnEvent]

	MyReporter *reporter.HttpReporter

	messenger *integration.SlackMessenger
	sentry    *integration.SentrySink

	historySql *sql.DB
	cursorSql  *sql.DB
	stop       context.CancelFunc
}

// NewBridgeServer creates a new bridge server and turns on its goroutines.
// ctx is used for parental context to cancel the operation of bridge server.
// wg is used to wait for all the goroutines inside the server (two monitors,
// http reporter) to finish.
func NewBridgeServer(bsc *BridgeServerConfig, ctx context.Context, wg *sync.WaitGroup) (*BridgeServer, error) {
	// A monitor that dies of a reorged cursor takes the whole daemon
	// down through this cancel; running on with one chain unwatched
	// would silently strand exchanges.
	ctx, stop := context.WithCancel(ctx)

	// 0) open the two sqlite stores
	historySql, err := database.OpenSQLite(bsc.HistoryDbPath)
	if err != nil {
		stop()
		return nil, err
	}
	historyDb, err := state.NewHistoryDB(historySql)
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create history db: %w", err)
	}
	cursorSql, err := database.OpenSQLite(bsc.CursorDbPath)
	if err != nil {
		stop()
		return nil, err
	}
	cursorDb, err := state.NewCursorDB(cursorSql)
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create cursor db: %w", err)
	}

	// 1) build the chain-n custodial signer
	custodialSigner, err := setupSigner(ctx, bsc)
	if err != nil {
		stop()
		return nil, err
	}

	// 2) chain-n graphql clients: one primary plus stage-only extras
	myNineMan, err := nineman.NewNineMan(&nineman.Config{
		GraphQLEndpoint: bsc.NineGraphqlEndpoint,
		AuthToken:       bsc.NineAuthToken,
	})
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create chain-n client: %w", err)
	}
	extraNodes := make([]*nineman.NineMan, 0, len(bsc.NineStageEndpoints))
	for _, endpoint := range bsc.NineStageEndpoints {
		node, err := nineman.NewNineMan(&nineman.Config{
			GraphQLEndpoint: endpoint,
			AuthToken:       bsc.NineAuthToken,
		})
		if err != nil {
			stop()
			return nil, fmt.Errorf("failed to create stage client for %s: %w", endpoint, err)
		}
		extraNodes = append(extraNodes, node)
	}

	// 3) serialized chain-n transfer path
	if !ethcommon.IsHexAddress(bsc.NcgMinterAddress) {
		stop()
		return nil, fmt.Errorf("invalid NCG minter address %q", bsc.NcgMinterAddress)
	}
	myTxManager, err := ninetxmanager.NewTxManager(
		ctx, myNineMan, extraNodes, custodialSigner, ethcommon.HexToAddress(bsc.NcgMinterAddress))
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create chain-n tx manager: %w", err)
	}

	// 4) the signing key must control the configured custodial address
	if !ethcommon.IsHexAddress(bsc.NineBridgeAddress) {
		stop()
		return nil, fmt.Errorf("invalid bridge address %q", bsc.NineBridgeAddress)
	}
	bridgeAddress := ethcommon.HexToAddress(bsc.NineBridgeAddress)
	if derived := myTxManager.SenderAddress(); derived != bridgeAddress {
		stop()
		return nil, fmt.Errorf("signer controls %s, configuration expects %s", derived.Hex(), bridgeAddress.Hex())
	}
	logger.WithField("address", bridgeAddress.Hex()).Info("Custodial chain-n account")

	// 5) chain-e client with its gas price policy
	gasPolicy, err := setupGasPolicy(bsc)
	if err != nil {
		stop()
		return nil, err
	}
	if !ethcommon.IsHexAddress(bsc.WncgContractAddr) {
		stop()
		return nil, fmt.Errorf("invalid wNCG contract address %q", bsc.WncgContractAddr)
	}
	var priorityFee *big.Int
	if bsc.PriorityFeeFloor != "" {
		priorityFee, err = parseWei("PRIORITY_FEE_FLOOR", bsc.PriorityFeeFloor)
		if err != nil {
			stop()
			return nil, err
		}
	}
	myEtherman, err := etherman.NewEtherman(&etherman.Config{
		URL:                 bsc.EthRpcUrl,
		WNCGContractAddress: ethcommon.HexToAddress(bsc.WncgContractAddr),
		MinterPrivateKey:    bsc.EthMinterPrivKey,
		PriorityFeeFloor:    priorityFee,
	}, gasPolicy)
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create chain-e client: %w", err)
	}
	logger.WithField("address", myEtherman.MinterAddress().Hex()).Info("wNCG minter account")

	// 6) exchange policy
	exchangePolicy, err := setupExchangePolicy(bsc)
	if err != nil {
		stop()
		return nil, err
	}
	planet, err := common.PlanetIDFromHex(bsc.PlanetId)
	if err != nil {
		stop()
		return nil, err
	}

	// 7) integrations; unset ones stay nil and every consumer copes
	server := &BridgeServer{
		MyNineMan:   myNineMan,
		MyEtherman:  myEtherman,
		MyTxManager: myTxManager,
		MyHistoryDb: historyDb,
		MyCursorDb:  cursorDb,
		historySql:  historySql,
		cursorSql:   cursorSql,
		stop:        stop,
	}

	var chat ninesync.Messenger
	if bsc.SlackToken != "" {
		slackMessenger, err := integration.NewSlackMessenger(bsc.SlackToken, bsc.SlackChannel)
		if err != nil {
			stop()
			return nil, err
		}
		server.messenger = slackMessenger
		chat = slackMessenger
	}

	var pager monitor.Pager
	if bsc.PagerdutyRoutingKey != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "nine-bridge"
		}
		pagerdutyPager, err := integration.NewPagerDutyPager(bsc.PagerdutyRoutingKey, hostname)
		if err != nil {
			stop()
			return nil, err
		}
		pager = pagerdutyPager
	}

	var audit ninesync.AuditStore
	if len(bsc.OpensearchAddresses) > 0 {
		opensearchAudit, err := integration.NewOpenSearchAudit(&integration.OpenSearchConfig{
			Addresses: bsc.OpensearchAddresses,
			Username:  bsc.OpensearchUsername,
			Password:  bsc.OpensearchPassword,
			Index:     bsc.OpensearchIndex,
		})
		if err != nil {
			stop()
			return nil, err
		}
		audit = opensearchAudit
	}

	var sink monitor.ErrorSink
	if bsc.SentryDsn != "" {
		sentrySink, err := integration.NewSentrySink(bsc.SentryDsn, bsc.SentryEnvironment)
		if err != nil {
			stop()
			return nil, err
		}
		server.sentry = sentrySink
		sink = sentrySink
	}

	// 8) chain-n deposit monitor: NCG in, wNCG out
	nineSource := ninesync.NewSource(myNineMan, bridgeAddress, bsc.NineConfirmations)
	nineObserver := ninesync.NewObserver(
		historyDb, myEtherman, myTxManager, exchangePolicy, chat, audit, pager,
		ninesync.ObserverConfig{
			EtherscanBaseURL: bsc.EtherscanBaseUrl,
			ExplorerBaseURL:  bsc.ExplorerBaseUrl,
		})
	myNineMonitor, err := monitor.New(
		&monitor.Config{
			Name:           ninesync.MonitorName,
			PollInterval:   ninePollInterval,
			StallThreshold: stallThreshold,
		},
		nineSource, nineObserver, cursorDb, sink, pager)
	if err != nil {
		stop()
		return nil, err
	}
	server.MyNineMonitor = myNineMonitor

	// 9) chain-e burn monitor: wNCG in, NCG out
	ethSource := ethsync.NewSource(myEtherman, bsc.EthConfirmations)
	ethObserver := ethsync.NewObserver(
		historyDb, myTxManager, chat, audit, pager,
		ethsync.ObserverConfig{
			Planet:           planet,
			EtherscanBaseURL: bsc.EtherscanBaseUrl,
			ExplorerBaseURL:  bsc.ExplorerBaseUrl,
		})
	myEthMonitor, err := monitor.New(
		&monitor.Config{
			Name:           ethsync.MonitorName,
			PollInterval:   ethPollInterval,
			StallThreshold: stallThreshold,
		},
		ethSource, ethObserver, cursorDb, sink, pager)
	if err != nil {
		stop()
		return nil, err
	}
	server.MyEthMonitor = myEthMonitor

	// *** Setup a http server to report status ***
	server.MyReporter = reporter.NewHttpReporter(bsc.HttpIp, bsc.HttpPort, historyDb, cursorDb)

	// Important: turn on the long-lived goroutines!
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myNineMonitor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("chain-n monitor terminated: %v", err)
			if sink != nil {
				sink.Capture(err, map[string]string{"monitor": ninesync.MonitorName})
			}
			stop()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myEthMonitor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("chain-e monitor terminated: %v", err)
			if sink != nil {
				sink.Capture(err, map[string]string{"monitor": ethsync.MonitorName})
			}
			stop()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.MyReporter.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("http reporter terminated: %v", err)
			stop()
		}
	}()
	// Don't forget to call wg.Wait() in the main routine.

	server.say(ctx, "NCG ↔ wNCG bridge daemon started.")
	return server, nil
}

// Close releases what NewBridgeServer opened. Call it after the
// goroutines have drained.
func (s *BridgeServer) Close() {
	s.say(context.Background(), "NCG ↔ wNCG bridge daemon stopped.")
	if s.sentry != nil {
		s.sentry.Flush(sentryFlushTimeout)
	}
	s.MyHistoryDb.Close()
	s.MyCursorDb.Close()
	if err := s.historySql.Close(); err != nil {
		logger.Warnf("failed to close history db: %v", err)
	}
	if err := s.cursorSql.Close(); err != nil {
		logger.Warnf("failed to close cursor db: %v", err)
	}
	s.stop()
}

func (s *BridgeServer) say(ctx context.Context, text string) {
	if s.messenger == nil {
		return
	}
	if err := s.messenger.SendMessage(ctx, text); err != nil {
		logger.Warnf("failed to post lifecycle message: %v", err)
	}
}

// Create, then start the bridge server and wait.
// Press Ctrl-C to kill the server.
func StartBridgeServerAndWait(bsc *BridgeServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal: %v, shutting down...", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	server, err := NewBridgeServer(bsc, ctx, &wg)
	if err != nil {
		logger.Errorf("failed to create bridge server: %v", err)
		os.Exit(-1)
	}

	// wait for all routines to finish
	wg.Wait()
	server.Close()
}

// Helper function. Build the chain-n signer from the config: AWS KMS in
// production, a raw private key for development setups.
func setupSigner(ctx context.Context, bsc *BridgeServerConfig) (signer.Signer, error) {
	if bsc.KmsKeyId != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(bsc.KmsRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		return signer.NewKMSSigner(awsCfg, bsc.KmsKeyId), nil
	}
	localSigner, err := signer.NewLocalSigner(bsc.NinePrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create local signer: %w", err)
	}
	logger.Warn("Signing with a local private key; use KMS in production")
	return localSigner, nil
}

// Helper function. Compose the gas price policy: tip ratio first, hard
// cap second.
func setupGasPolicy(bsc *BridgeServerConfig) (gasprice.Policy, error) {
	ratio, err := decimal.NewFromString(bsc.GasTipRatio)
	if err != nil {
		return nil, fmt.Errorf("invalid GAS_TIP_RATIO %q: %w", bsc.GasTipRatio, err)
	}
	tip, err := gasprice.NewTipPolicy(ratio)
	if err != nil {
		return nil, err
	}
	if bsc.GasPriceCap == "" {
		return tip, nil
	}
	cap, err := parseWei("GAS_PRICE_CAP", bsc.GasPriceCap)
	if err != nil {
		return nil, err
	}
	limit, err := gasprice.NewLimitPolicy(cap)
	if err != nil {
		return nil, err
	}
	return gasprice.NewCompositePolicy(tip, limit), nil
}

// Helper function. Parse the exchange limits, the fee ratio and the ban
// list into the policy object.
func setupExchangePolicy(bsc *BridgeServerConfig) (*policy.ExchangePolicy, error) {
	min, err := decimal.NewFromString(bsc.NcgMinimum)
	if err != nil {
		return nil, fmt.Errorf("invalid NCG_MINIMUM %q: %w", bsc.NcgMinimum, err)
	}
	max, err := decimal.NewFromString(bsc.NcgMaximum)
	if err != nil {
		return nil, fmt.Errorf("invalid NCG_MAXIMUM %q: %w", bsc.NcgMaximum, err)
	}
	feeRatio, err := decimal.NewFromString(bsc.NcgFeeRatio)
	if err != nil {
		return nil, fmt.Errorf("invalid NCG_FEE_RATIO %q: %w", bsc.NcgFeeRatio, err)
	}
	banned := make([]ethcommon.Address, 0, len(bsc.BannedAddresses))
	for _, addr := range bsc.BannedAddresses {
		if !ethcommon.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid banned address %q", addr)
		}
		banned = append(banned, ethcommon.HexToAddress(addr))
	}
	return policy.New(banned, min, max, feeRatio)
}

func parseWei(key, value string) (*big.Int, error) {
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q: not a base-10 integer", key, value)
	}
	return wei, nil
}
