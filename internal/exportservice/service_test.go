package exportservice

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/ansuz/internal/anki"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/testutil"
)

const sampleDeck = `---
title: Biology
tags: [science]
---

## What is a cell?

The basic unit of life.

## What is DNA?

Deoxyribonucleic acid.
`

func newTestService(t *testing.T) *Service {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, db, anki.NewExporter(logger, 0), logger)
}

func TestCreateAndGetDeck(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateDeck(ctx, "biology", []byte(sampleDeck))
	if err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	if created.Title != "Biology" {
		t.Errorf("title = %q, want %q", created.Title, "Biology")
	}
	if len(created.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(created.Cards))
	}

	got, err := svc.GetDeck(ctx, "biology")
	if err != nil {
		t.Fatalf("GetDeck: %v", err)
	}
	if got.Checksum != created.Checksum {
		t.Errorf("checksum mismatch: %q vs %q", got.Checksum, created.Checksum)
	}
}

func TestCreateDeckAlreadyExists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDeck(ctx, "dup", []byte("## Q\n\nA\n")); err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	_, err := svc.CreateDeck(ctx, "dup", []byte("## Q2\n\nA2\n"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetDeckNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetDeck(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDeckConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDeck(ctx, "con", []byte("## Q\n\nA\n")); err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	_, err := svc.UpdateDeck(ctx, "con", []byte("## Q\n\nB\n"), "stale-checksum")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateDeckWithMatchingChecksum(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateDeck(ctx, "up", []byte("## Q\n\nA\n"))
	if err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	updated, err := svc.UpdateDeck(ctx, "up", []byte("## Q\n\nB\n"), created.Checksum)
	if err != nil {
		t.Fatalf("UpdateDeck: %v", err)
	}
	if updated.Checksum == created.Checksum {
		t.Error("checksum should change after update")
	}
}

func TestDeleteDeck(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDeck(ctx, "del", []byte("## Q\n\nA\n")); err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	if err := svc.DeleteDeck(ctx, "del"); err != nil {
		t.Fatalf("DeleteDeck: %v", err)
	}
	_, err := svc.GetDeck(ctx, "del")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAddCard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDeck(ctx, "add", []byte("## Q1\n\nA1\n")); err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}
	detail, err := svc.AddCard(ctx, "add", "Q2", "A2", []string{"extra"})
	if err != nil {
		t.Fatalf("AddCard: %v", err)
	}
	if len(detail.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(detail.Cards))
	}
	found := false
	for _, tag := range detail.Cards[1].Tags {
		if tag == "extra" {
			found = true
		}
	}
	if !found {
		t.Errorf("card tags = %v, want to contain %q", detail.Cards[1].Tags, "extra")
	}
}

func TestListDecks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _ = svc.CreateDeck(ctx, "b", []byte("## Q\n\nA\n"))
	_, _ = svc.CreateDeck(ctx, "a", []byte(sampleDeck))

	items, err := svc.ListDecks(ctx)
	if err != nil {
		t.Fatalf("ListDecks: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 decks, got %d", len(items))
	}
	if items[0].Name != "a" || items[0].CardCount != 2 {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestSearch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _ = svc.CreateDeck(ctx, "s", []byte(sampleDeck))

	hits, err := svc.Search(ctx, "Deoxyribonucleic", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Deck != "s" {
		t.Errorf("hit deck = %q, want %q", hits[0].Deck, "s")
	}
}

func TestExportNamedDeck(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _ = svc.CreateDeck(ctx, "biology", []byte(sampleDeck))

	pkg, err := svc.Export(ctx, []string{"biology"}, anki.Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if pkg.CardCount != 2 {
		t.Errorf("card count = %d, want 2", pkg.CardCount)
	}
	if pkg.Filename != "biology.apkg" {
		t.Errorf("filename = %q, want %q", pkg.Filename, "biology.apkg")
	}

	zr, err := zip.NewReader(bytes.NewReader(pkg.Data), int64(len(pkg.Data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	var hasCollection bool
	for _, f := range zr.File {
		if f.Name == "collection.anki2" {
			hasCollection = true
		}
	}
	if !hasCollection {
		t.Error("archive missing collection.anki2")
	}
}

func TestExportAllDecks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _ = svc.CreateDeck(ctx, "one", []byte("## Q1\n\nA1\n"))
	_, _ = svc.CreateDeck(ctx, "two", []byte("## Q2\n\nA2\n"))

	pkg, err := svc.Export(ctx, nil, anki.Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if pkg.CardCount != 2 {
		t.Errorf("card count = %d, want 2", pkg.CardCount)
	}
}

func TestExportUnknownDeck(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Export(context.Background(), []string{"ghost"}, anki.Options{})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
