package fingerprint

import (
	"context"
	"errors"
	"testing"

	"stayguard/internal/models"
)

func TestFingerprint_Deterministic(t *testing.T) {
	c := NewCollector(&StubSurface{})

	first := c.Fingerprint(context.Background())
	second := c.Fingerprint(context.Background())

	if first.Hash != second.Hash {
		t.Errorf("Stable input must hash identically: %s != %s", first.Hash, second.Hash)
	}
	if first.VisitorID != second.VisitorID {
		t.Errorf("Visitor id must be stable: %s != %s", first.VisitorID, second.VisitorID)
	}
}

func TestFingerprint_VisitorIDFormat(t *testing.T) {
	c := NewCollector(&StubSurface{})

	fp := c.Fingerprint(context.Background())

	if len(fp.VisitorID) != len("fp_")+16 {
		t.Errorf("Expected fp_<16-hex> id, got %s", fp.VisitorID)
	}
	if fp.VisitorID[:3] != "fp_" {
		t.Errorf("Expected fp_ prefix, got %s", fp.VisitorID)
	}
	if fp.VisitorID != "fp_"+fp.Hash[:16] {
		t.Errorf("Visitor id must be a hash prefix: %s vs %s", fp.VisitorID, fp.Hash)
	}
}

func TestFingerprint_VolatileFieldsExcluded(t *testing.T) {
	c := NewCollector(&StubSurface{})

	base := c.Collect(context.Background())
	changed := c.Collect(context.Background())
	changed.Connection = &models.ConnectionInfo{EffectiveType: "3g", Downlink: 1, RTT: 500}

	if c.hasher(StableInput(base)) != c.hasher(StableInput(changed)) {
		t.Error("Connection changes must not churn the stable hash")
	}
}

func TestCollect_DegradesGracefully(t *testing.T) {
	c := NewCollector(&StubSurface{FailCategories: map[string]bool{
		"canvas": true, "webgl": true, "audio": true, "fonts": true,
	}})

	components := c.Collect(context.Background())

	if components.CanvasHash != "" || components.WebGLHash != "" || components.AudioHash != "" {
		t.Error("Failed render probes must leave categories empty")
	}
	if len(components.Fonts) != 0 {
		t.Error("Failed font probe must leave category empty")
	}
	// Remaining categories still collected.
	if components.Screen == nil || components.Hardware == nil {
		t.Error("Unrelated categories must still be collected")
	}
}

func TestConfidence_Monotonic(t *testing.T) {
	c := NewCollector(&StubSurface{})
	full := c.Collect(context.Background())

	// Strip categories one at a time; confidence must never increase.
	prev := Confidence(full)
	if prev != 100 {
		t.Errorf("Full stub surface should score 100, got %d", prev)
	}

	reduced := *full
	reduced.Connection = nil
	if s := Confidence(&reduced); s > prev {
		t.Errorf("Dropping a category must not raise confidence: %d > %d", s, prev)
	} else {
		prev = s
	}

	reduced.AudioHash = ""
	if s := Confidence(&reduced); s > prev {
		t.Errorf("Dropping a category must not raise confidence: %d > %d", s, prev)
	} else {
		prev = s
	}

	reduced.Fonts = nil
	if s := Confidence(&reduced); s > prev {
		t.Errorf("Dropping a category must not raise confidence: %d > %d", s, prev)
	}
}

func TestConfidence_FontHalfCredit(t *testing.T) {
	c := NewCollector(&StubSurface{})
	components := c.Collect(context.Background())

	components.Fonts = components.Fonts[:3]
	withFew := Confidence(components)

	components.Fonts = nil
	without := Confidence(components)

	if withFew-without != confidenceWeights["fonts"]/2 {
		t.Errorf("1-5 fonts should earn half credit, got delta %d", withFew-without)
	}
}

func TestFallbackHash_Deterministic(t *testing.T) {
	input := "canvas|webgl|audio|fonts"

	if FallbackHash(input) != FallbackHash(input) {
		t.Error("Fallback hash must be deterministic")
	}
	if len(FallbackHash(input)) != 64 {
		t.Errorf("Fallback hash should match digest length, got %d", len(FallbackHash(input)))
	}
	if FallbackHash(input) == FallbackHash(input+"x") {
		t.Error("Different input must produce different fallback hash")
	}
}

type memStore struct {
	id     string
	visits int64
	getErr error
	putErr error
	puts   []string
}

func (m *memStore) Get(_ context.Context) (string, int64, error) {
	if m.getErr != nil {
		return "", 0, m.getErr
	}
	m.visits++
	return m.id, m.visits, nil
}

func (m *memStore) Put(_ context.Context, id string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts = append(m.puts, id)
	m.id = id
	return nil
}

func TestResolve_StorageHit(t *testing.T) {
	c := NewCollector(&StubSurface{})
	store := &memStore{id: "fp_deadbeefcafe0123", visits: 4}

	fp := c.Resolve(context.Background(), store)

	if fp.Origin != models.OriginStorage {
		t.Errorf("Expected storage origin, got %s", fp.Origin)
	}
	if fp.VisitorID != "fp_deadbeefcafe0123" {
		t.Errorf("Expected stored id, got %s", fp.VisitorID)
	}
	if fp.Confidence != 99 {
		t.Errorf("Storage hit should carry confidence 99, got %d", fp.Confidence)
	}
	if fp.Visits != 5 {
		t.Errorf("Expected incremented visit count 5, got %d", fp.Visits)
	}
}

func TestResolve_MissWritesNewRecord(t *testing.T) {
	c := NewCollector(&StubSurface{})
	store := &memStore{getErr: ErrNotFound}

	fp := c.Resolve(context.Background(), store)

	if fp.Origin != models.OriginNew {
		t.Errorf("Expected new origin, got %s", fp.Origin)
	}
	if len(store.puts) != 1 || store.puts[0] != fp.VisitorID {
		t.Errorf("Expected id persisted on miss, got %v", store.puts)
	}
	if fp.Confidence != Confidence(fp.Components) {
		t.Errorf("New origin confidence should equal fingerprint confidence")
	}
}

func TestResolve_StoreUnavailable(t *testing.T) {
	c := NewCollector(&StubSurface{})
	store := &memStore{getErr: errors.New("connection refused")}

	fp := c.Resolve(context.Background(), store)

	if fp.Origin != models.OriginFingerprint {
		t.Errorf("Broken store must degrade to fingerprint origin, got %s", fp.Origin)
	}
	if len(store.puts) != 0 {
		t.Error("No write should happen when the store read failed hard")
	}
}
