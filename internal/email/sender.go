// Package email implements the Bulk Email Dispatcher's provider layer: AWS
// SES v2 single and multi-recipient sends behind a provider-agnostic
// interface the workflow package drives through the rate governor.
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Message is one outbound email, HTML body with an explicit From and
// optional Reply-To.
type Message struct {
	From     string
	ReplyTo  string
	To       string
	Subject  string
	BodyHTML string
}

// Sender delivers email through AWS SES v2.
type Sender struct {
	client *sesv2.Client
}

// New builds a Sender using either static tenant-provided credentials (when
// both are non-empty) or the default AWS credential chain otherwise.
func New(ctx context.Context, region, accessKey, secretKey string) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Sender{client: sesv2.NewFromConfig(cfg)}, nil
}

// Send delivers one message. Errors are returned to the caller, which is
// expected to count the recipient as failed and continue the batch rather
// than abort.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.BodyHTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	_, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}
	return nil
}
