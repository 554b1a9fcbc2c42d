package bus

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/op/go-nanomsg"
	"go.uber.org/zap"
)

// Publisher fans out RIB/IS-IS/BGP state to the out-of-core show/CLI/
// bridge-server collaborators over a nanomsg PUB socket, matching
// teacher's rib/server/ribdNotificationServer.go and confirmed as the
// original design by original_source/zebra-rs's rib/nanomsg.rs.
type Publisher struct {
	mu     sync.Mutex
	sock   *nanomsg.PubSocket
	logger *zap.Logger
	ch     chan published
}

type published struct {
	topic string
	msg   []byte
}

// NewPublisher binds a PUB socket at addr (e.g. "tcp://127.0.0.1:5011").
func NewPublisher(addr string, logger *zap.Logger) (*Publisher, error) {
	sock, err := nanomsg.NewPubSocket()
	if err != nil {
		return nil, fmt.Errorf("bus: new pub socket: %w", err)
	}
	if _, err := sock.Bind(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("bus: bind %s: %w", addr, err)
	}
	p := &Publisher{
		sock:   sock,
		logger: logger,
		ch:     make(chan published, 256),
	}
	go p.loop()
	return p, nil
}

// Publish encodes v as JSON and queues it for send under topic. It never
// blocks the caller's task on a slow or absent subscriber: the send itself
// happens on the publisher's own loop goroutine using nanomsg.DontWait.
func (p *Publisher) Publish(topic string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("bus: marshal publish payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	select {
	case p.ch <- published{topic: topic, msg: b}:
	default:
		p.logger.Warn("bus: publisher queue full, dropping update", zap.String("topic", topic))
	}
}

func (p *Publisher) loop() {
	for m := range p.ch {
		frame := append([]byte(m.topic+" "), m.msg...)
		if _, err := p.sock.Send(frame, nanomsg.DontWait); err != nil {
			p.logger.Debug("bus: publish send failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
}

func (p *Publisher) Close() error {
	close(p.ch)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sock.Close()
}
