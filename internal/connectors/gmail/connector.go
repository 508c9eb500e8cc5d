package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"billops/internal"
	"billops/internal/config"
)

// billQuery narrows the listing to mails that can carry a carrier bill.
const billQuery = "has:attachment OR subject:(고지서 OR 청구서 OR 요금)"

type Connector struct {
	service *gmail.Service
	query   string
}

func NewConnector(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*Connector, error) {
	if len(opts) == 0 {
		for name, value := range map[string]string{
			"GMAIL_CLIENT_ID":     cfg.GmailClientID,
			"GMAIL_CLIENT_SECRET": cfg.GmailClientSecret,
			"GMAIL_REFRESH_TOKEN": cfg.GmailRefreshToken,
		} {
			if err := cfg.Require(name, value); err != nil {
				return nil, err
			}
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.GmailRedirectURI,
			Scopes:       []string{gmail.GmailReadonlyScope},
		}
		ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
		opts = []option.ClientOption{option.WithTokenSource(ts)}
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc, query: billQuery}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listResp, err := c.service.Users.Messages.List("me").LabelIds(label).Q(c.query).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		rawResp, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, messageFromRaw(ref.Id, rawResp.InternalDate, raw))
	}
	return out, nil
}

// messageFromRaw reads the envelope headers straight from the raw message.
func messageFromRaw(id string, internalDateMs int64, raw []byte) internal.FetchedMailMessage {
	msg := internal.FetchedMailMessage{Provider: "gmail", MessageID: id, Raw: raw}

	received := time.Now().UTC()
	if internalDateMs > 0 {
		received = time.UnixMilli(internalDateMs).UTC()
	}
	if parsed, err := mail.ReadMessage(strings.NewReader(string(raw))); err == nil {
		dec := new(mime.WordDecoder)
		header := func(name string) string {
			v := parsed.Header.Get(name)
			if d, err := dec.DecodeHeader(v); err == nil {
				return d
			}
			return v
		}
		msg.Subject = header("Subject")
		msg.From = header("From")
		if mid := strings.TrimSpace(parsed.Header.Get("Message-ID")); mid != "" {
			msg.MessageID = mid
		}
		if internalDateMs <= 0 {
			if t, err := parsed.Header.Date(); err == nil {
				received = t.UTC()
			}
		}
	}
	msg.ReceivedAt = received.Format(time.RFC3339)
	return msg
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
