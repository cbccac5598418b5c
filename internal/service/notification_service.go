package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

// Notifier delivers a message to a customer. Implementations must not block
// the caller and never report delivery errors back.
type Notifier interface {
	Notify(ctx context.Context, customer models.Customer, message string)
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifierConfig tunes delivery.
type TelegramNotifierConfig struct {
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// TelegramNotifier sends messages to customers' Telegram chats.
type TelegramNotifier struct {
	sender  messageSender
	limiter *rate.Limiter
	timeout time.Duration
	metrics *MetricsService
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewTelegramNotifier builds a notifier on top of a bot client.
func NewTelegramNotifier(sender messageSender, cfg TelegramNotifierConfig, metrics *MetricsService, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &TelegramNotifier{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		timeout: cfg.Timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Notify queues the message on its own goroutine. Customers without a chat or
// without opt-in are skipped.
func (n *TelegramNotifier) Notify(ctx context.Context, customer models.Customer, message string) {
	if !customer.NotifyOptIn || customer.TelegramChatID == nil {
		n.metrics.RecordNotification("skipped")
		return
	}
	chatID := *customer.TelegramChatID

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		if err := n.send(sendCtx, chatID, message); err != nil {
			n.metrics.RecordNotification("failed")
			n.logger.Warn("telegram notification failed",
				zap.String("customer_id", customer.ID),
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
			return
		}
		n.metrics.RecordNotification("sent")
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *TelegramNotifier) Wait() {
	n.wg.Wait()
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := n.sender.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send telegram message: %w", ctx.Err())
	}
}

// LogNotifier writes notifications to the log. Used when no bot token is set.
type LogNotifier struct {
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(metrics *MetricsService, logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{metrics: metrics, logger: logger}
}

// Notify logs the message for opted-in customers.
func (n *LogNotifier) Notify(_ context.Context, customer models.Customer, message string) {
	if !customer.NotifyOptIn {
		n.metrics.RecordNotification("skipped")
		return
	}
	n.metrics.RecordNotification("logged")
	n.logger.Info("customer notification", zap.String("customer_id", customer.ID), zap.String("message", message))
}

var statusPhrases = map[models.TrainingStatus]string{
	models.StatusWaitingApproveReserve: "is waiting for reservation approval",
	models.StatusReserved:              "is reserved",
	models.StatusDone:                  "is completed",
	models.StatusWaitingApproveCancel:  "is waiting for cancellation approval",
	models.StatusCancelled:             "was cancelled",
}

// TrainingStatusMessage describes a status change in the customer's time zone.
func TrainingStatusMessage(t *models.TrainingSession, customer models.Customer) string {
	phrase, ok := statusPhrases[t.Status]
	if !ok {
		phrase = "changed status to " + string(t.Status)
	}
	return fmt.Sprintf("Your training %q on %s %s.", trainingTitle(t), formatWindow(t, customer), phrase)
}

// TrainingReminderMessage reminds a customer of an upcoming training.
func TrainingReminderMessage(t *models.TrainingSession, customer models.Customer) string {
	return fmt.Sprintf("Reminder: your training %q starts %s.", trainingTitle(t), formatWindow(t, customer))
}

func trainingTitle(t *models.TrainingSession) string {
	if t.Snapshot != nil && t.Snapshot.Name != "" {
		return t.Snapshot.Name
	}
	return t.Name
}

func formatWindow(t *models.TrainingSession, customer models.Customer) string {
	loc := time.UTC
	if customer.Timezone != "" {
		if tz, err := time.LoadLocation(customer.Timezone); err == nil {
			loc = tz
		}
	}
	begin := t.TimeBegin.In(loc)
	return fmt.Sprintf("%s %s-%s (%s)", begin.Format("Mon 02 Jan 2006"), begin.Format("15:04"), t.TimeFinish.In(loc).Format("15:04"), begin.Format("MST"))
}
