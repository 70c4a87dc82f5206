// Package notify fans escalated safety reports out to management.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// HazardMessage is the body published for each escalated report.
type HazardMessage struct {
	ReportID       string             `json:"reportId"`
	SiteID         string             `json:"siteId"`
	AuthorID       string             `json:"authorId"`
	HazardLevel    models.HazardLevel `json:"hazardLevel"`
	Date           string             `json:"date"`
	PPECompliance  bool               `json:"ppeCompliance"`
	Observations   string             `json:"observations"`
	ActionRequired string             `json:"actionRequired"`
	ReportedAt     time.Time          `json:"reportedAt"`
}

func messageFor(r *models.SafetyReport) HazardMessage {
	return HazardMessage{
		ReportID:       r.ID,
		SiteID:         r.SiteID,
		AuthorID:       r.AuthorID,
		HazardLevel:    r.HazardLevel,
		Date:           r.Date,
		PPECompliance:  r.PPECompliance,
		Observations:   r.Observations,
		ActionRequired: r.ActionRequired,
		ReportedAt:     r.Timestamp,
	}
}

// RoutingKey is the topic a report is published under, e.g.
// safety.hazard.critical.
func RoutingKey(level models.HazardLevel) string {
	return "safety.hazard." + strings.ToLower(string(level))
}

// LogNotifier writes escalations to the log. It is used when no broker is
// configured.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyHazard(ctx context.Context, r *models.SafetyReport) error {
	n.log.Warn(ctx, "hazard escalated",
		"report_id", r.ID, "site_id", r.SiteID, "hazard_level", r.HazardLevel, "routing_key", RoutingKey(r.HazardLevel))
	return nil
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes escalations to a durable topic exchange.
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       publisher
	exchange string
}

// DialAMQP connects, opens a channel and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("amqp exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

func (n *AMQPNotifier) NotifyHazard(ctx context.Context, r *models.SafetyReport) error {
	body, err := json.Marshal(messageFor(r))
	if err != nil {
		return fmt.Errorf("encode hazard message: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.ID,
		Timestamp:    r.Timestamp,
		Body:         body,
	}

	// channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.PublishWithContext(ctx, n.exchange, RoutingKey(r.HazardLevel), false, false, msg); err != nil {
		return fmt.Errorf("publish hazard: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
