package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/logger"
)

// MailRequestedEvent - сообщение в топик, который читает почтовый сервис.
type MailRequestedEvent struct {
	Template  string            `json:"template"`
	Subject   string            `json:"subject"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
	QueuedAt  time.Time         `json:"queued_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

// KafkaMailer ставит письма в очередь kafka; доставкой занимается отдельный сервис.
type KafkaMailer struct {
	writer messageWriter
	log    *logrus.Entry
}

func NewKafkaMailer(cfg KafkaConfig) *KafkaMailer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{},
		}
	}
	return newKafkaMailer(writer)
}

func newKafkaMailer(writer messageWriter) *KafkaMailer {
	return &KafkaMailer{writer: writer, log: logger.For("mail")}
}

// Send публикует письмо; ключ сообщения - адрес получателя.
func (m *KafkaMailer) Send(ctx context.Context, msg entity.MailMessage) error {
	if msg.Recipient == "" {
		return fmt.Errorf("mail: recipient is required")
	}

	event := MailRequestedEvent{
		Template:  msg.Template,
		Subject:   msg.Subject,
		Recipient: msg.Recipient,
		Data:      msg.Data,
		QueuedAt:  time.Now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mail: marshal event: %w", err)
	}

	if err := m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Recipient),
		Value: value,
		Time:  event.QueuedAt,
	}); err != nil {
		return fmt.Errorf("mail: publish %s: %w", msg.Template, err)
	}

	m.log.WithFields(logrus.Fields{
		"template":  msg.Template,
		"recipient": msg.Recipient,
	}).Debug("mail queued")
	return nil
}

func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}

// LogMailer пишет письма в лог, когда брокер не настроен.
type LogMailer struct {
	log *logrus.Entry
}

func NewLogMailer() *LogMailer {
	return &LogMailer{log: logger.For("mail")}
}

func (m *LogMailer) Send(ctx context.Context, msg entity.MailMessage) error {
	m.log.WithFields(logrus.Fields{
		"template":  msg.Template,
		"subject":   msg.Subject,
		"recipient": msg.Recipient,
		"data":      msg.Data,
	}).Info("mail not sent: broker is not configured")
	return nil
}
