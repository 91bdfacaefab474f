package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	ws "github.com/PR-ODINSON/HydroLink-sub000/internal/notifications/websocket"
)

// AddressResolver maps engine user ids to deliverable email addresses. The
// identity provider supplies the implementation.
type AddressResolver interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

var emailSubjects = map[Type]string{
	TypeCreditRequestSubmitted: "Credit request received",
	TypeCreditRequestApproved:  "Your credit has been certified",
	TypeCreditRequestRejected:  "Your credit request was rejected",
	TypePurchaseRequested:      "New purchase request for your credit",
	TypePurchaseAccepted:       "Purchase confirmed",
	TypePurchaseDeclined:       "Purchase declined",
	TypePurchaseCancelled:      "Purchase request withdrawn",
	TypePurchaseExpired:        "Purchase request expired",
	TypeCreditRetired:          "Credit retired",
}

// EmailChannel delivers notifications over AWS SES.
type EmailChannel struct {
	client   *sesv2.Client
	sender   string
	resolver AddressResolver
}

// NewEmailChannel creates an SES-backed email transport.
func NewEmailChannel(client *sesv2.Client, sender string, resolver AddressResolver) *EmailChannel {
	return &EmailChannel{client: client, sender: sender, resolver: resolver}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, n *Notification) error {
	addr, err := c.resolver.EmailFor(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient address: %w", err)
	}

	subject, ok := emailSubjects[n.Type]
	if !ok {
		subject = string(n.Type)
	}
	body := fmt.Sprintf("HydroLink update: %s\n\nDetails: %s\n", subject, string(n.Metadata))

	_, err = c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.sender),
		Destination:      &sestypes.Destination{ToAddresses: []string{addr}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// WebSocketChannel pushes notifications to the recipient's live connections.
type WebSocketChannel struct {
	manager *ws.Manager
}

// NewWebSocketChannel creates a websocket transport over the hub.
func NewWebSocketChannel(manager *ws.Manager) *WebSocketChannel {
	return &WebSocketChannel{manager: manager}
}

func (c *WebSocketChannel) Name() string { return "websocket" }

func (c *WebSocketChannel) Deliver(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return c.manager.SendToUser(n.RecipientID.String(), ws.Message{
		Type:      string(n.Type),
		Data:      data,
		Timestamp: time.Now(),
		Target:    n.RecipientID.String(),
	})
}
