package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"billops/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	if _, err := NewConnector(config.Config{IMAPHost: "imap.example"}); err == nil {
		t.Fatal("expected missing user error")
	}
	c, err := NewConnector(config.Config{IMAPHost: "imap.example", IMAPPort: 993, IMAPUser: "u", IMAPPassword: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if c.addr != "imap.example:993" {
		t.Fatalf("unexpected addr %s", c.addr)
	}
}

func TestNewestKeepsTail(t *testing.T) {
	got := newest([]uint32{1, 2, 3, 4}, 2)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected ids %v", got)
	}
	if got := newest([]uint32{1, 2}, 0); len(got) != 2 {
		t.Fatalf("zero max should keep all, got %v", got)
	}
}

func TestBillCandidate(t *testing.T) {
	bySubject := &imap.Message{Envelope: &imap.Envelope{Subject: "3월 이용요금 청구서"}}
	if !billCandidate(bySubject) {
		t.Fatal("subject with 청구서 should be a candidate")
	}
	byAttachment := &imap.Message{
		Envelope: &imap.Envelope{Subject: "안내"},
		BodyStructure: &imap.BodyStructure{
			MIMEType: "multipart",
			Parts: []*imap.BodyStructure{
				{MIMEType: "text", MIMESubType: "html"},
				{MIMEType: "application", MIMESubType: "pdf", Disposition: "attachment"},
			},
		},
	}
	if !billCandidate(byAttachment) {
		t.Fatal("mail with an attachment should be a candidate")
	}
	plain := &imap.Message{Envelope: &imap.Envelope{Subject: "회의 안내"}, BodyStructure: &imap.BodyStructure{MIMEType: "text"}}
	if billCandidate(plain) {
		t.Fatal("plain notice should not be a candidate")
	}
}

func TestToFetched(t *testing.T) {
	at := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		Uid:          42,
		InternalDate: at,
		Envelope: &imap.Envelope{
			Subject: "요금 고지서",
			From:    []*imap.Address{{PersonalName: "KT", MailboxName: "bill", HostName: "kt.example"}, {MailboxName: "cc", HostName: "kt.example"}},
		},
	}
	got := toFetched(msg, []byte("raw"))
	if got.MessageID != "imap-42" {
		t.Fatalf("expected uid fallback, got %s", got.MessageID)
	}
	if got.From != "KT <bill@kt.example>, cc@kt.example" {
		t.Fatalf("unexpected from %q", got.From)
	}
	if got.ReceivedAt != "2025-04-01T09:00:00Z" || got.Provider != "imap" || string(got.Raw) != "raw" {
		t.Fatalf("unexpected message %+v", got)
	}
}
