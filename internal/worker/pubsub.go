package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the trigger subscription.
const (
	JobTypeCollect     = "collect"
	JobTypeHealthCheck = "health_check"
)

// Dispatch errors.
var (
	ErrUnknownJobType = errors.New("unknown job type")
	ErrInvalidMessage = errors.New("invalid job message")
)

// JobMessage is the payload of a trigger message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Stations overrides the configured stations for a collect job.
	Stations []string `json:"stations,omitempty"`
}

// Dispatcher runs jobs described by trigger messages.
type Dispatcher struct {
	job     *CollectJob
	service StationService
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher for the given collect job.
func NewDispatcher(job *CollectJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, service: job.service, logger: logger}
}

// Handle decodes and runs one job message.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch msg.JobType {
	case JobTypeCollect:
		return d.collect(ctx, msg)
	case JobTypeHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) collect(ctx context.Context, msg JobMessage) error {
	result := d.job.RunFor(ctx, msg.Stations)

	// Consider it successful unless most stations failed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many collect failures: %d/%d", result.Failed, result.Failed+result.Successful)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	devices, err := d.service.Devices(checkCtx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	d.logger.Debug().Int("devices", len(devices)).Msg("health check passed")
	return nil
}

// PubSubHandler receives trigger messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One collect at a time; a run can take a while with many stations.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks processing messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if Acknowledge(h.handleMessage(ctx, msg)) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) error {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Handle(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Err(err).Msg("ignoring message")
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
	default:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
	}
	return err
}

// Acknowledge reports whether a message that produced err should be acked.
// Unknown job types are acked so they are not redelivered.
func Acknowledge(err error) bool {
	return err == nil || errors.Is(err, ErrUnknownJobType)
}
