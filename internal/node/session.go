package node

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/internal/mining"
	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
)

const (
	defaultChainPollInterval = 30 * time.Second

	// Bytes reserved in the template blob for the nonce
	templateReserveSize = 8
)

// JobSink receives jobs decoded from block templates
type JobSink interface {
	UpdateJob(job mining.Job)
}

// Session mines against a node daemon directly: it pulls block templates,
// submits solved blocks, and refreshes work when the chain advances.
type Session struct {
	client       *RPCClient
	jobs         JobSink
	wallet       string
	pollInterval time.Duration
	logger       *log.Logger

	lastHeight uint64

	handlerMu   sync.Mutex
	onNewHeight func(height uint64)
}

// Config holds node session configuration
type Config struct {
	URL               string
	Username          string
	Password          string
	WalletAddress     string
	ChainPollInterval time.Duration
}

// NewSession creates a node session that delivers template jobs to the sink
func NewSession(cfg Config, jobs JobSink, logger *log.Logger) (*Session, error) {
	if cfg.WalletAddress == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "new_session",
			"wallet address is required")
	}
	if jobs == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_session", "job sink is required")
	}

	client, err := NewRPCClient(cfg.URL, cfg.Username, cfg.Password, logger)
	if err != nil {
		return nil, err
	}

	if cfg.ChainPollInterval <= 0 {
		cfg.ChainPollInterval = defaultChainPollInterval
	}

	return &Session{
		client:       client,
		jobs:         jobs,
		wallet:       cfg.WalletAddress,
		pollInterval: cfg.ChainPollInterval,
		logger:       logger.WithComponent("node"),
	}, nil
}

// SetHeightHandler registers a callback invoked whenever chain monitoring
// observes a height increase.
func (s *Session) SetHeightHandler(handler func(height uint64)) {
	s.handlerMu.Lock()
	s.onNewHeight = handler
	s.handlerMu.Unlock()
}

func (s *Session) heightHandler() func(height uint64) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	return s.onNewHeight
}

// NotifyHeight injects an externally observed chain height, as published by
// the daemon's ZMQ socket. Safe to call once Run has started.
func (s *Session) NotifyHeight(height uint64) {
	if handler := s.heightHandler(); handler != nil {
		handler(height)
	}
}

type blockTemplateParams struct {
	WalletAddress string `json:"wallet_address"`
	ReserveSize   int    `json:"reserve_size"`
}

type blockTemplateResult struct {
	JobID             string `json:"job_id"`
	BlocktemplateBlob string `json:"blocktemplate_blob"`
	Target            string `json:"target"`
	Height            uint64 `json:"height"`
	Difficulty        uint64 `json:"difficulty"`
}

// GetBlockTemplate fetches a fresh template and maps it into a job. Template
// work is always RandomX.
func (s *Session) GetBlockTemplate(ctx context.Context) (mining.Job, error) {
	var result blockTemplateResult
	err := s.client.Call(ctx, "getblocktemplate", blockTemplateParams{
		WalletAddress: s.wallet,
		ReserveSize:   templateReserveSize,
	}, &result)
	if err != nil {
		return mining.Job{}, err
	}

	if result.JobID == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "getblocktemplate",
			"template missing job_id")
	}
	if result.BlocktemplateBlob == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "getblocktemplate",
			"template missing blocktemplate_blob")
	}
	if result.Target == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "getblocktemplate",
			"template missing target")
	}

	blob, err := hex.DecodeString(result.BlocktemplateBlob)
	if err != nil {
		return mining.Job{}, errors.Wrap(err, errors.ErrorTypeInput, "getblocktemplate",
			"invalid template blob hex")
	}
	target, err := hex.DecodeString(result.Target)
	if err != nil {
		return mining.Job{}, errors.Wrap(err, errors.ErrorTypeInput, "getblocktemplate",
			"invalid template target hex")
	}

	s.logger.Info("block template received",
		"job_id", result.JobID,
		"height", result.Height,
		"difficulty", result.Difficulty,
	)

	return mining.Job{
		ID:        result.JobID,
		Blob:      blob,
		Target:    target,
		Algorithm: algo.KindRandomX,
	}, nil
}

type submitBlockParams struct {
	Block string `json:"block"`
}

type statusResult struct {
	Status string `json:"status"`
}

// SubmitBlock submits a solved share's result to the daemon
func (s *Session) SubmitBlock(ctx context.Context, share mining.Share) error {
	var result statusResult
	err := s.client.Call(ctx, "submitblock", submitBlockParams{
		Block: hex.EncodeToString(share.Result[:]),
	}, &result)
	if err != nil {
		return err
	}

	s.logger.Info("block submitted",
		"job_id", share.JobID,
		"nonce", share.Nonce,
		"status", result.Status,
	)
	return nil
}

type infoResult struct {
	Height uint64 `json:"height"`
}

// checkChain polls get_info once and reports whether the height advanced
func (s *Session) checkChain(ctx context.Context) (bool, error) {
	var info infoResult
	if err := s.client.Call(ctx, "get_info", nil, &info); err != nil {
		return false, err
	}

	if info.Height > s.lastHeight {
		if s.lastHeight != 0 {
			s.logger.Info("chain height increased",
				"old_height", s.lastHeight,
				"new_height", info.Height,
			)
		}
		s.lastHeight = info.Height
		if handler := s.heightHandler(); handler != nil {
			handler(info.Height)
		}
		return true, nil
	}
	return false, nil
}

// MonitorChain polls get_info until the context ends. Poll failures are
// logged and the loop keeps going.
func (s *Session) MonitorChain(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.checkChain(ctx); err != nil {
				s.logger.WithError(err).Warn("chain poll failed")
			}
		}
	}
}

// Run drives node mining: install an initial template, then refresh whenever
// a share is submitted or the chain height advances.
func (s *Session) Run(ctx context.Context, shares <-chan mining.Share) error {
	if err := s.refreshTemplate(ctx); err != nil {
		return err
	}

	heights := make(chan uint64, 4)
	prev := s.heightHandler()
	s.SetHeightHandler(func(height uint64) {
		if prev != nil {
			prev(height)
		}
		select {
		case heights <- height:
		default:
		}
	})
	go s.MonitorChain(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("node session shutting down")
			return nil

		case <-heights:
			if err := s.refreshTemplate(ctx); err != nil {
				return err
			}

		case share, ok := <-shares:
			if !ok {
				return nil
			}
			if err := s.SubmitBlock(ctx, share); err != nil {
				return err
			}
			if err := s.refreshTemplate(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) refreshTemplate(ctx context.Context) error {
	job, err := s.GetBlockTemplate(ctx)
	if err != nil {
		return err
	}
	s.jobs.UpdateJob(job)
	return nil
}
