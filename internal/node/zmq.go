package node

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
)

// Topic published by the daemon when blocks are added to the main chain
const chainMainTopic = "json-minimal-chain_main"

// ChainListener subscribes to the daemon's ZMQ pub socket for chain updates.
// It is a lower-latency complement to get_info polling; the poll loop remains
// the fallback when the daemon runs without ZMQ.
type ChainListener struct {
	socket   *zmq.Socket
	endpoint string
	logger   *log.Logger

	onNewBlock func(height uint64)
}

// NewChainListener creates a listener for the given ZMQ endpoint
// (e.g. tcp://127.0.0.1:18083).
func NewChainListener(endpoint string, logger *log.Logger) (*ChainListener, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "zmq_listener",
			"failed to create ZMQ socket")
	}

	return &ChainListener{
		socket:   socket,
		endpoint: endpoint,
		logger:   logger.WithComponent("zmq"),
	}, nil
}

// SetBlockHandler registers the callback for new main-chain blocks
func (l *ChainListener) SetBlockHandler(handler func(height uint64)) {
	l.onNewBlock = handler
}

// Connect subscribes to chain notifications on the endpoint
func (l *ChainListener) Connect() error {
	if err := l.socket.SetSubscribe(chainMainTopic); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "zmq_listener",
			"failed to subscribe").WithContext("topic", chainMainTopic)
	}
	if err := l.socket.Connect(l.endpoint); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "zmq_listener",
			"failed to connect").WithContext("endpoint", l.endpoint)
	}
	l.logger.Info("listening for chain notifications",
		"endpoint", l.endpoint,
		"topic", chainMainTopic,
	)
	return nil
}

// chainMainEntry is the minimal block record the daemon publishes
type chainMainEntry struct {
	FirstHeight uint64   `json:"first_height"`
	IDs         []string `json:"ids"`
}

// Listen receives notifications until the context ends
func (l *ChainListener) Listen(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("chain listener stopping")
			return
		default:
		}

		msg, err := l.socket.RecvBytes(zmq.DONTWAIT)
		if err != nil {
			if err.Error() == "resource temporarily unavailable" {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			l.logger.WithError(err).Error("failed to receive ZMQ message")
			continue
		}

		l.handleMessage(msg)
	}
}

// handleMessage parses a "topic:{json}" frame and fires the block handler
func (l *ChainListener) handleMessage(msg []byte) {
	sep := bytes.IndexByte(msg, ':')
	if sep < 0 {
		l.logger.Warn("malformed ZMQ frame", "size", len(msg))
		return
	}

	topic := string(msg[:sep])
	if topic != chainMainTopic {
		l.logger.Debug("ignoring ZMQ topic", "topic", topic)
		return
	}

	var entries []chainMainEntry
	if err := json.Unmarshal(msg[sep+1:], &entries); err != nil {
		l.logger.WithError(err).Warn("undecodable chain notification")
		return
	}
	if len(entries) == 0 {
		return
	}

	height := entries[len(entries)-1].FirstHeight
	l.logger.Info("chain notification received", "height", height)
	if l.onNewBlock != nil {
		l.onNewBlock(height)
	}
}

// Close releases the ZMQ socket
func (l *ChainListener) Close() error {
	if l.socket != nil {
		return l.socket.Close()
	}
	return nil
}
