package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task names
const (
	TypeBillingSweep       = "billing:sweep"
	TypeChargeSubscription = "billing:charge_subscription"
	TypeSendNotification   = "notification:send"
)

// Queues
const (
	QueueBilling       = "billing"
	QueueNotifications = "notifications"
)

// SweepUniqueTTL keeps a second sweep from being queued while one is pending or running
const SweepUniqueTTL = time.Hour

// ChargeSubscriptionPayload is the payload of a single renewal charge
type ChargeSubscriptionPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

// SendNotificationPayload is the payload of a user notification
type SendNotificationPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Text   string    `json:"text"`
}

// Enqueuer is the part of *asynq.Client the dispatcher needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ErrSweepAlreadyQueued is returned when a sweep is already pending or running
var ErrSweepAlreadyQueued = errors.New("billing sweep already queued")

// NewBillingSweepTask builds the sweep task
func NewBillingSweepTask() *asynq.Task {
	return asynq.NewTask(TypeBillingSweep, nil,
		asynq.Queue(QueueBilling),
		asynq.Unique(SweepUniqueTTL),
		asynq.MaxRetry(0),
	)
}

// NewChargeSubscriptionTask builds a single renewal charge task
func NewChargeSubscriptionTask(subscriptionID uuid.UUID) *asynq.Task {
	return asynq.NewTask(TypeChargeSubscription,
		mustMarshalJSON(ChargeSubscriptionPayload{SubscriptionID: subscriptionID}),
		asynq.Queue(QueueBilling),
		asynq.MaxRetry(0),
	)
}

// NewSendNotificationTask builds a notification task
func NewSendNotificationTask(userID uuid.UUID, text string) *asynq.Task {
	return asynq.NewTask(TypeSendNotification,
		mustMarshalJSON(SendNotificationPayload{UserID: userID, Text: text}),
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
}

// Dispatcher queues billing and notification work
type Dispatcher struct {
	client Enqueuer
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

// Notify queues a user notification. It implements service.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, text string) error {
	if _, err := d.client.EnqueueContext(ctx, NewSendNotificationTask(userID, text)); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// EnqueueSweep queues a billing sweep and returns its task id
func (d *Dispatcher) EnqueueSweep(ctx context.Context) (string, error) {
	info, err := d.client.EnqueueContext(ctx, NewBillingSweepTask())
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", ErrSweepAlreadyQueued
		}
		return "", fmt.Errorf("failed to enqueue sweep: %w", err)
	}
	return info.ID, nil
}

// RegisterHandlers registers all task handlers with the server mux.
func RegisterHandlers(mux *asynq.ServeMux, billing *BillingJobHandler, notifications *NotificationJobHandler) {
	mux.HandleFunc(TypeBillingSweep, billing.HandleBillingSweep)
	mux.HandleFunc(TypeChargeSubscription, billing.HandleChargeSubscription)
	mux.HandleFunc(TypeSendNotification, notifications.HandleSendNotification)
}

// RegisterScheduledTasks registers the billing sweep cron entry
func RegisterScheduledTasks(scheduler *asynq.Scheduler, sweepCron string) error {
	if _, err := scheduler.Register(sweepCron, NewBillingSweepTask()); err != nil {
		return fmt.Errorf("failed to schedule billing sweep: %w", err)
	}
	return nil
}

func mustMarshalJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("tasks: failed to marshal payload: %v", err))
	}
	return b
}
