package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vmitra/vmitra/internal/services/assistant/model"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/history"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/sale"
	"go.uber.org/goleak"
)

// memoryLedger accepts every tool call and keeps saved chats in memory.
type memoryLedger struct {
	mu    sync.Mutex
	chats []history.ChatSession
}

func (l *memoryLedger) RecordSale(context.Context, []sale.Request, string) (businessapp.SaleResult, error) {
	return businessapp.SaleResult{Success: true, Message: sale.MessageSaved}, nil
}

func (l *memoryLedger) Restock(context.Context, []inventory.RestockRequest) (businessapp.RestockResult, error) {
	return businessapp.RestockResult{Success: true, Message: inventory.MessageRestocked}, nil
}

func (l *memoryLedger) AddChatSession(_ context.Context, messages []history.Message) (history.ChatSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	chat := history.ChatSession{ID: "S" + time.Now().Format("150405.000"), Summary: history.Summarize(messages), Messages: messages}
	l.chats = append(l.chats, chat)
	return chat, nil
}

func (l *memoryLedger) saved() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}

func startWithTurn(t *testing.T, registry *Registry, text string) Info {
	t.Helper()
	info, err := registry.Start(context.Background(), "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := registry.Turn(context.Background(), info.ID, text); err != nil {
		t.Fatalf("turn: %v", err)
	}
	return info
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	clock := &testClock{now: testNow}
	ledger := &memoryLedger{}
	m := &scriptedModel{responses: []model.Response{{Text: "Ji"}}}
	registry, logs := newTestRegistry(t, ledger, m, clock)

	idle := startWithTurn(t, registry, "purana session")
	clock.Advance(20 * time.Minute)
	fresh := startWithTurn(t, registry, "naya session")
	clock.Advance(15 * time.Minute)

	if ended := registry.Sweep(context.Background()); ended != 1 {
		t.Fatalf("swept = %d, want 1", ended)
	}
	if _, err := registry.lookup(idle.ID); err == nil {
		t.Fatal("expected idle session removed")
	}
	if _, err := registry.lookup(fresh.ID); err != nil {
		t.Fatalf("expected fresh session kept: %v", err)
	}
	if ledger.saved() != 1 || ledger.chats[0].Summary != "purana session" {
		t.Fatalf("unexpected saved chats: %+v", ledger.chats)
	}
	entries := logs.FilterMessage("assistant session saved").All()
	if len(entries) != 1 || entries[0].ContextMap()["reason"] != "expired" {
		t.Fatalf("unexpected save logs: %+v", entries)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &testClock{now: testNow}
	ledger := &memoryLedger{}
	registry, _ := newTestRegistry(t, ledger, &scriptedModel{responses: []model.Response{{Text: "Ji"}}}, clock)
	startWithTurn(t, registry, "jaldi band hoga")
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- registry.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for registry.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor did not expire the session")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if ledger.saved() != 1 {
		t.Fatalf("saved = %d, want 1", ledger.saved())
	}
}

func TestShutdownSavesLiveSessions(t *testing.T) {
	clock := &testClock{now: testNow}
	ledger := &memoryLedger{}
	registry, _ := newTestRegistry(t, ledger, &scriptedModel{responses: []model.Response{{Text: "Ji"}}}, clock)
	startWithTurn(t, registry, "pehla")
	startWithTurn(t, registry, "doosra")
	if _, err := registry.Start(context.Background(), "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := registry.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if registry.Len() != 0 {
		t.Fatalf("len = %d, want 0", registry.Len())
	}
	if ledger.saved() != 2 {
		t.Fatalf("saved = %d, want 2", ledger.saved())
	}
}
