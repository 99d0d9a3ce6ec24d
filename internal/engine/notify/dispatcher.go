// internal/engine/notify/dispatcher.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"autoapply-engine/internal/common/aws"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/models"
)

// Sink delivers one event over one channel. Implementations must be safe
// for concurrent use.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.Event, profile models.UserProfile) error
}

// Dispatcher fans events out to every configured sink. Delivery is
// best effort: a sink failure is logged and never propagated to the run
// that produced the event.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  logger.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sinks []Sink, timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// Dispatch hands the event to every sink asynchronously and returns
// immediately. The run outcome is already decided when events fire, so
// delivery failures must not change it.
func (d *Dispatcher) Dispatch(event models.Event, profile models.UserProfile) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(s Sink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := s.Deliver(ctx, event, profile); err != nil {
				d.logger.Warn("notification delivery failed", map[string]interface{}{
					"sink":   s.Name(),
					"kind":   string(event.Kind),
					"userId": event.UserID,
					"error":  err.Error(),
				})
			}
		}(sink)
	}
}

// Wait blocks until every in-flight delivery has finished. Called during
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// EventForRecord maps a terminal application record to its notification
// event, or false for statuses that produce none.
func EventForRecord(rec models.ApplicationRecord) (models.Event, bool) {
	payload := map[string]interface{}{
		"jobTitle": rec.JobTitle,
		"company":  rec.Company,
		"jobUrl":   rec.JobURL,
	}
	switch rec.Status {
	case models.StatusSubmitted:
		return models.Event{Kind: models.EventApplicationSent, UserID: rec.UserID, Payload: payload}, true
	case models.StatusFailed:
		payload["reason"] = rec.FailureReason
		return models.Event{Kind: models.EventApplicationFailed, UserID: rec.UserID, Payload: payload}, true
	}
	return models.Event{}, false
}

// RunCompletedEvent summarizes a finished run for the user.
func RunCompletedEvent(summary models.RunSummary) models.Event {
	return models.Event{
		Kind:   models.EventRunCompleted,
		UserID: summary.UserID,
		Payload: map[string]interface{}{
			"submitted":   summary.Submitted,
			"failed":      summary.Failed,
			"skipped":     summary.Skipped,
			"nextResetAt": summary.NextResetAt.Format(time.RFC3339),
		},
	}
}

// EmailSink delivers events over SES.
type EmailSink struct {
	client *aws.SESClient
	sender string
}

func NewEmailSink(client *aws.SESClient, sender string) *EmailSink {
	return &EmailSink{client: client, sender: sender}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, event models.Event, profile models.UserProfile) error {
	if profile.Email == "" {
		return fmt.Errorf("user %s has no email address", event.UserID)
	}
	subject, body := renderEmail(event)
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(s.sender),
		Destination: &sestypes.Destination{ToAddresses: []string{profile.Email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
	})
	return err
}

// SMSSink delivers events over SNS. Only high-signal events go to SMS;
// the rest are dropped silently.
type SMSSink struct {
	client *aws.SNSClient
}

func NewSMSSink(client *aws.SNSClient) *SMSSink {
	return &SMSSink{client: client}
}

func (s *SMSSink) Name() string { return "sms" }

func (s *SMSSink) Deliver(ctx context.Context, event models.Event, profile models.UserProfile) error {
	switch event.Kind {
	case models.EventResponseReceived, models.EventInterviewScheduled:
	default:
		return nil
	}
	if profile.Phone == "" {
		return fmt.Errorf("user %s has no phone number", event.UserID)
	}
	_, body := renderEmail(event)
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: awssdk.String(profile.Phone),
		Message:     awssdk.String(body),
	})
	return err
}

func renderEmail(event models.Event) (subject, body string) {
	title, _ := event.Payload["jobTitle"].(string)
	company, _ := event.Payload["company"].(string)

	switch event.Kind {
	case models.EventApplicationSent:
		return fmt.Sprintf("Application sent: %s at %s", title, company),
			fmt.Sprintf("Your application for %s at %s was submitted successfully.", title, company)
	case models.EventApplicationFailed:
		reason, _ := event.Payload["reason"].(string)
		return fmt.Sprintf("Application failed: %s at %s", title, company),
			fmt.Sprintf("Your application for %s at %s could not be submitted (%s). It did not count against your quota.", title, company, reason)
	case models.EventResponseReceived:
		return fmt.Sprintf("Response from %s", company),
			fmt.Sprintf("%s responded to your application for %s.", company, title)
	case models.EventInterviewScheduled:
		return fmt.Sprintf("Interview scheduled with %s", company),
			fmt.Sprintf("An interview for %s at %s has been scheduled.", title, company)
	case models.EventRunCompleted:
		submitted, _ := event.Payload["submitted"].(int)
		failed, _ := event.Payload["failed"].(int)
		skipped, _ := event.Payload["skipped"].(int)
		return "Job search run completed",
			fmt.Sprintf("Run finished: %d submitted, %d failed, %d skipped.", submitted, failed, skipped)
	}
	return string(event.Kind), string(event.Kind)
}
