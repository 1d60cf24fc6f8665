package publisher

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"firstview-tracker/internal/firstview"
	"firstview-tracker/internal/tracker"
)

const DefaultSubjectPrefix = "firstview"

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("firstview-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectPrefix(prefix), logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// RiderMessage is the per-rider payload on <prefix>.riders.<riderID>.
type RiderMessage struct {
	RiderID   string             `json:"riderId"`
	Name      string             `json:"name"`
	FetchedAt time.Time          `json:"fetchedAt"`
	Records   []firstview.Result `json:"records"`
}

// PublishSnapshot sends the whole snapshot on <prefix>.snapshot and every rider group on
// <prefix>.riders.<riderID>. All subjects are attempted; the first error is returned.
func (p *NATSPublisher) PublishSnapshot(s tracker.Snapshot) error {
	firstErr := p.publish(SnapshotSubject(p.prefix), s)
	for _, g := range s.Riders {
		msg := RiderMessage{RiderID: g.RiderID, Name: g.Name, FetchedAt: s.FetchedAt, Records: g.Records}
		if err := p.publish(RiderSubject(p.prefix, g.RiderID), msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func SnapshotSubject(prefix string) string { return subjectPrefix(prefix) + ".snapshot" }

func RiderSubject(prefix, riderID string) string {
	return subjectPrefix(prefix) + ".riders." + subjectToken(riderID)
}

// subjectPrefix keeps dots between tokens but sanitises each token.
func subjectPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	parts := strings.Split(prefix, ".")
	for i, part := range parts {
		parts[i] = subjectToken(part)
	}
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
