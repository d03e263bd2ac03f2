package core

import (
	"context"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestWebhooks_CreateRevealsSecretOnce(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	created, err := h.svc.CreateWebhook(asService(), CreateWebhookInput{URL: "https://hooks.example/community"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(created.Secret, "whsec_") {
		t.Fatalf("expected generated secret, got %q", created.Secret)
	}
	if len(created.EventTypes) != 1 || created.EventTypes[0] != WildcardEvent || !created.Active {
		t.Fatalf("unexpected defaults: %+v", created)
	}

	stored := h.stores.webhooks.records[created.ID]
	plain, _ := testSecretProvider{}.Decrypt(context.Background(), stored.EncryptedSecret)
	if string(plain) != created.Secret {
		t.Fatalf("expected encrypted secret at rest")
	}

	fetched, err := h.svc.GetWebhook(asService(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Secret != "" || fetched.EncryptedSecret != nil {
		t.Fatalf("expected redacted webhook, got %+v", fetched)
	}
}

func TestWebhooks_ValidationAndPermissions(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	member := h.mustUser("hooker", RoleMember)
	if _, err = h.svc.CreateWebhook(asUser(member), CreateWebhookInput{URL: "https://hooks.example"}); !goerrors.IsCategory(err, goerrors.CategoryAuthz) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	for _, url := range []string{"", "ftp://hooks.example", "/relative"} {
		if _, err = h.svc.CreateWebhook(asService(), CreateWebhookInput{URL: url}); !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
			t.Fatalf("url %q: expected bad input, got %v", url, err)
		}
	}

	created, err := h.svc.CreateWebhook(asService(), CreateWebhookInput{URL: "https://hooks.example", EventTypes: []string{"User.Created", "user.created"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.EventTypes) != 1 || created.EventTypes[0] != EventUserCreated {
		t.Fatalf("expected lowercased unique event types, got %v", created.EventTypes)
	}
	inactive := false
	updated, err := h.svc.UpdateWebhook(asService(), created.ID, UpdateWebhookInput{Active: &inactive})
	if err != nil || updated.Active {
		t.Fatalf("update: %+v / %v", updated, err)
	}
}

func TestLogs_AppendRedactsAndPrunes(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("logger", RoleMember)

	entry, err := h.svc.AppendLog(asUser(user), AppendLogInput{
		Source:  "bot",
		Message: "linked wallet",
		Fields:  map[string]any{"signature": "0xabc", "external_id": "0x1"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.Level != LogInfo || entry.UserID != user.ID {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["signature"] != RedactedValue || entry.Fields["external_id"] != "0x1" {
		t.Fatalf("unexpected fields: %#v", entry.Fields)
	}
	if _, err = h.svc.AppendLog(asUser(user), AppendLogInput{Level: "loud", Source: "bot", Message: "x"}); !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
		t.Fatalf("expected invalid level, got %v", err)
	}
	if _, err = h.svc.ListLogs(asUser(user), LogFilter{}); !goerrors.IsCategory(err, goerrors.CategoryAuthz) {
		t.Fatalf("expected members to be unable to list logs, got %v", err)
	}

	h.advance(31 * 24 * time.Hour)
	deleted, err := h.svc.PruneLogs(asService(), time.Time{})
	if err != nil || deleted != 1 {
		t.Fatalf("prune: %d / %v", deleted, err)
	}
}
