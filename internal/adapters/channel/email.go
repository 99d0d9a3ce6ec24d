// internal/adapters/channel/email.go
package channel

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"

	"autoapply-engine/internal/common/aws"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/engine/submitter"
	"autoapply-engine/internal/models"
)

// Emailer is the SES surface the channel needs.
type Emailer interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

var _ Emailer = (*aws.SESClient)(nil)

// EmailChannel submits applications by mailing the posting's application
// address. A missing address is a logical rejection, SES errors are
// transient.
type EmailChannel struct {
	email  Emailer
	sender string
	logger logger.Logger
}

func NewEmailChannel(email Emailer, sender string, log logger.Logger) *EmailChannel {
	return &EmailChannel{
		email:  email,
		sender: sender,
		logger: log.WithFields(map[string]interface{}{"component": "email_channel"}),
	}
}

func (c *EmailChannel) Submit(ctx context.Context, userID string, candidate models.JobCandidate, cvDocument string) (submitter.SubmitResult, error) {
	if candidate.ApplyEmail == "" {
		return submitter.SubmitResult{}, fmt.Errorf("%w: posting has no application address", submitter.ErrRejected)
	}

	ref := uuid.New().String()
	subject := fmt.Sprintf("Application: %s [ref %s]", candidate.Title, ref)
	body := fmt.Sprintf("Application for the %s position at %s.\n\n%s\n", candidate.Title, candidate.Company, cvDocument)

	_, err := c.email.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(c.sender),
		Destination: &sestypes.Destination{ToAddresses: []string{candidate.ApplyEmail}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
	})
	if err != nil {
		return submitter.SubmitResult{}, fmt.Errorf("send application email: %w", err)
	}

	return submitter.SubmitResult{Accepted: true, ExternalRef: ref}, nil
}
