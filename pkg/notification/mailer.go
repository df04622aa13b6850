package notification

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/dukex/folio/pkg/models"
)

// Mailer delivers a copy of a notification outside the app.
type Mailer interface {
	Send(ctx context.Context, to *models.User, n *models.Notification) error
}

// SESAPI is the part of the SES client the mailer uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

var ErrNoSender = errors.New("sender address is required")

type SESMailer struct {
	client SESAPI
	from   string
}

func NewSESMailer(client SESAPI, from string) (*SESMailer, error) {
	if from == "" {
		return nil, ErrNoSender
	}

	return &SESMailer{client: client, from: from}, nil
}

// NewSESMailerFromRegion loads the default AWS credential chain.
func NewSESMailerFromRegion(ctx context.Context, region, from string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	return NewSESMailer(ses.NewFromConfig(cfg), from)
}

func (m *SESMailer) Send(ctx context.Context, to *models.User, n *models.Notification) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Message)},
			},
		},
		Source: aws.String(m.from),
	})

	return err
}
