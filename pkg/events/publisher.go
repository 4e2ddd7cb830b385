package events

import (
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/update"
)

// PublishTimeout bounds the wait for a publish to be acknowledged.
const PublishTimeout = time.Second

// RunsTopic is the topic pattern of all update events.
const RunsTopic = "+/runs/+"

// Topic returns the topic of events of a run on host.
func Topic(host, runID string) string {
	return host + "/runs/" + runID
}

// HostOf extracts the host from an event topic.
func HostOf(topic string) string {
	if pos := strings.IndexByte(topic, '/'); pos > 0 {
		return topic[:pos]
	}
	return ""
}

// Publisher publishes update events. Publishing never fails a run: errors
// are only logged.
type Publisher struct {
	Queue *Queue
	Host  string
}

// NewPublisher connects to brokerURL and publishes events of host.
func NewPublisher(brokerURL, host string) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("reflash:" + host)
	}
	p := &Publisher{Queue: NewQueue(opts, topicPrefix), Host: host}
	token := p.Queue.Connect()
	if !token.WaitTimeout(PublishTimeout) {
		glog.Warningf("MQTT broker %s not connected yet, events may be lost", brokerURL)
	} else if err := token.Error(); err != nil {
		return nil, err
	}
	return p, nil
}

// OnEvent implements update.Observer.
func (p *Publisher) OnEvent(e update.Event) {
	payload, err := Encode(e)
	if err != nil {
		glog.Errorf("encode event: %v", err)
		return
	}
	token := p.Queue.Pub(Topic(p.Host, e.RunID), payload)
	if !token.WaitTimeout(PublishTimeout) {
		glog.Warningf("publish %s event timed out", e.To)
	} else if err := token.Error(); err != nil {
		glog.Warningf("publish %s event: %v", e.To, err)
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	return p.Queue.Close()
}

// Subscribe delivers events of all runs to fn. Undecodable payloads are
// logged and dropped.
func Subscribe(q *Queue, fn func(host string, e update.Event)) *Subscription {
	return q.Sub(RunsTopic, func(topic string, payload []byte) {
		e, err := Decode(payload)
		if err != nil {
			glog.Warningf("dropping event on %s: %v", topic, err)
			return
		}
		fn(HostOf(topic), e)
	})
}

// Logger logs state transitions.
type Logger struct{}

// OnEvent implements update.Observer.
func (Logger) OnEvent(e update.Event) {
	if e.Err != nil {
		glog.Errorf("[%s] %s -> %s: %v", e.Port, e.From, e.To, e.Err)
		return
	}
	glog.Infof("[%s] %s -> %s: %s", e.Port, e.From, e.To, e.Message)
}
