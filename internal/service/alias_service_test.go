package service

import (
	"sync"
	"testing"
	"time"
)

func TestAliasToken(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}

	for _, tt := range tests {
		if got := AliasToken(tt.n); got != tt.want {
			t.Errorf("AliasToken(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestEnsureAliasStable(t *testing.T) {
	env := setupEnv(t)
	env.addHomeownerProject(t, "p1", "owner")
	env.addContractor(t, "cx", "Xavier Builds")
	env.addContractor(t, "cy", "Yolanda Decks")

	first, err := env.aliases.EnsureAlias("p1", "cx")
	if err != nil {
		t.Fatalf("EnsureAlias cx: %v", err)
	}
	if first != "A" {
		t.Errorf("first contractor alias = %q, want A", first)
	}

	second, err := env.aliases.EnsureAlias("p1", "cy")
	if err != nil {
		t.Fatalf("EnsureAlias cy: %v", err)
	}
	if second != "B" {
		t.Errorf("second contractor alias = %q, want B", second)
	}

	// Repeated calls always return the same alias
	for i := 0; i < 3; i++ {
		again, err := env.aliases.EnsureAlias("p1", "cx")
		if err != nil {
			t.Fatalf("repeat EnsureAlias: %v", err)
		}
		if again != first {
			t.Errorf("alias changed across calls: %q -> %q", first, again)
		}
	}
}

func TestEnsureAliasScopedPerProject(t *testing.T) {
	env := setupEnv(t)
	env.addHomeownerProject(t, "p1", "owner")
	env.addHomeownerProject(t, "p2", "owner2")
	env.addContractor(t, "cx", "Xavier Builds")

	a1, err := env.aliases.EnsureAlias("p1", "cx")
	if err != nil {
		t.Fatalf("EnsureAlias p1: %v", err)
	}
	a2, err := env.aliases.EnsureAlias("p2", "cx")
	if err != nil {
		t.Fatalf("EnsureAlias p2: %v", err)
	}
	if a1 != "A" || a2 != "A" {
		t.Errorf("aliases restart per project: got %q/%q", a1, a2)
	}
}

func TestEnsureAliasConcurrentFirstContact(t *testing.T) {
	env := setupEnv(t)
	env.addHomeownerProject(t, "p1", "owner")
	contractors := []string{"c1", "c2", "c3", "c4"}
	for _, id := range contractors {
		env.addContractor(t, id, "Crew "+id)
	}

	results := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range contractors {
		wg.Add(1)
		go func(contractorID string) {
			defer wg.Done()
			alias, err := env.aliases.EnsureAlias("p1", contractorID)
			if err != nil {
				t.Errorf("EnsureAlias(%s): %v", contractorID, err)
				return
			}
			mu.Lock()
			results[contractorID] = alias
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	seen := make(map[string]string)
	for contractorID, alias := range results {
		if prev, dup := seen[alias]; dup {
			t.Errorf("alias %q assigned to both %s and %s", alias, prev, contractorID)
		}
		seen[alias] = contractorID
	}
	if len(results) != len(contractors) {
		t.Errorf("expected %d assignments, got %d", len(contractors), len(results))
	}
}

func TestListParticipantsBackfillsByFirstInteraction(t *testing.T) {
	env := setupEnv(t)
	env.addHomeownerProject(t, "p1", "owner")
	env.addContractor(t, "late", "Late Bidder")
	env.addContractor(t, "early", "Early Bidder")

	base := time.Now().Add(-time.Hour)
	env.addBid(t, "p1", "late", 9000, base.Add(30*time.Minute))
	env.addBid(t, "p1", "early", 8000, base)

	participants, err := env.aliases.ListParticipants("p1")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}
	if participants[0].ContractorID != "early" || participants[0].Alias != "A" {
		t.Errorf("earliest bidder should be A: %+v", participants[0])
	}
	if participants[1].ContractorID != "late" || participants[1].Alias != "B" {
		t.Errorf("later bidder should be B: %+v", participants[1])
	}
}

func TestListParticipantsSeesFreshBid(t *testing.T) {
	env := setupEnv(t)
	env.addHomeownerProject(t, "p1", "owner")
	env.addContractor(t, "cx", "Xavier Builds")
	env.addBid(t, "p1", "cx", 9000, time.Now().Add(-time.Hour))

	first, err := env.aliases.ListParticipants("p1")
	if err != nil {
		t.Fatalf("first ListParticipants: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(first))
	}

	// A bid landing after the list was cached must appear immediately,
	// not after the cache entry expires
	env.addContractor(t, "cy", "Yolanda Decks")
	env.addBid(t, "p1", "cy", 9500, time.Now())

	second, err := env.aliases.ListParticipants("p1")
	if err != nil {
		t.Fatalf("second ListParticipants: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("fresh bidder missing from participants: %+v", second)
	}
	if second[1].ContractorID != "cy" || second[1].Alias != "B" {
		t.Errorf("fresh bidder should be B: %+v", second[1])
	}
}

func TestAliasMapOmitsUnaliased(t *testing.T) {
	env := setupEnv(t)
	env.addHomeownerProject(t, "p1", "owner")
	env.addContractor(t, "cx", "Xavier Builds")

	if _, err := env.aliases.EnsureAlias("p1", "cx"); err != nil {
		t.Fatalf("EnsureAlias: %v", err)
	}

	m, err := env.aliases.AliasMap("p1")
	if err != nil {
		t.Fatalf("AliasMap: %v", err)
	}
	if m["cx"] != "A" {
		t.Errorf("expected cx -> A, got %v", m)
	}
	if _, ok := m["owner"]; ok {
		t.Error("the homeowner must never appear in the alias map")
	}
}
