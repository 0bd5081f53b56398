package entries

import (
	"context"
	"reflect"
	"testing"

	"molt-accel/accelerr"
)

func TestListItemsPageShape(t *testing.T) {
	out, err := ListItems(context.Background(), map[string]any{
		"user_id": float64(7), // JSON decodes numbers as float64
		"limit":   float64(25),
	})
	if err != nil {
		t.Fatal(err)
	}
	page := out.(map[string]any)

	items := page["items"].([]map[string]any)
	if len(items) != 25 {
		t.Fatalf("expect 25 items, got %d", len(items))
	}
	if page["next_cursor"] != "7:25" {
		t.Fatalf("expect next_cursor 7:25, got %v", page["next_cursor"])
	}

	counts := page["counts"].(map[string]any)
	if counts["open"] != int64(13) || counts["closed"] != int64(12) {
		t.Fatalf("unexpected counts: %v", counts)
	}

	first := items[0]
	if first["id"] != int64(7000) || first["status"] != "open" {
		t.Fatalf("unexpected first item: %v", first)
	}
	if first["created_at"] != "2026-01-01T00:00:00Z" {
		t.Fatalf("unexpected created_at: %v", first["created_at"])
	}
}

func TestListItemsDeterministic(t *testing.T) {
	payload := map[string]any{
		"user_id": int64(-3),
		"q":       "open tickets",
		"status":  "open",
		"cursor":  "3:50",
		"limit":   int64(10),
	}
	a, err := ListItems(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ListItems(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same payload must produce the same page")
	}
}

func TestListItemsNegativeUserID(t *testing.T) {
	out, err := ListItems(context.Background(), map[string]any{"user_id": int64(-3), "limit": int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	items := out.(map[string]any)["items"].([]map[string]any)
	// Ids derive from the magnitude, so -3 and 3 share a base.
	if items[0]["id"] != int64(3000) {
		t.Fatalf("expect id 3000, got %v", items[0]["id"])
	}
}

func TestListItemsMissingUserID(t *testing.T) {
	_, err := ListItems(context.Background(), map[string]any{"limit": int64(10)})
	if accelerr.KindOf(err) != accelerr.KindInvalidInput {
		t.Fatalf("expect InvalidInput, got %v", err)
	}
}

func TestComputeMath(t *testing.T) {
	out, err := Compute(context.Background(), map[string]any{
		"values": []any{float64(1), float64(2), float64(3)},
		"scale":  float64(2),
		"offset": float64(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	result := out.(map[string]any)
	if result["count"] != 3 {
		t.Fatalf("expect count 3, got %v", result["count"])
	}
	if result["sum"] != float64(12) {
		t.Fatalf("expect sum 12, got %v", result["sum"])
	}
	if !reflect.DeepEqual(result["scaled"], []float64{3, 5, 7}) {
		t.Fatalf("unexpected scaled values: %v", result["scaled"])
	}
}

func TestComputeDefaultsScaleAndOffset(t *testing.T) {
	out, err := Compute(context.Background(), map[string]any{
		"values": []any{float64(4), float64(6)},
	})
	if err != nil {
		t.Fatal(err)
	}
	result := out.(map[string]any)
	if result["sum"] != float64(10) {
		t.Fatalf("expect identity transform, got sum %v", result["sum"])
	}
}

func TestComputeRejectsNonNumericValues(t *testing.T) {
	_, err := Compute(context.Background(), map[string]any{
		"values": []any{"four"},
	})
	if accelerr.KindOf(err) != accelerr.KindInvalidInput {
		t.Fatalf("expect InvalidInput, got %v", err)
	}
}

func TestOffloadTableSample(t *testing.T) {
	out, err := OffloadTable(context.Background(), map[string]any{"rows": int64(100)})
	if err != nil {
		t.Fatal(err)
	}
	result := out.(map[string]any)
	if result["rows"] != int64(100) {
		t.Fatalf("expect rows 100, got %v", result["rows"])
	}
	sample := result["sample"].([]map[string]any)
	if len(sample) != 5 {
		t.Fatalf("expect 5 sample rows, got %d", len(sample))
	}
	if sample[3]["value"] != int64(3) {
		t.Fatalf("unexpected sample row: %v", sample[3])
	}
}

func TestOffloadTableZeroRows(t *testing.T) {
	out, err := OffloadTable(context.Background(), map[string]any{"rows": int64(0)})
	if err != nil {
		t.Fatal(err)
	}
	result := out.(map[string]any)
	if len(result["sample"].([]map[string]any)) != 0 {
		t.Fatal("expect empty sample for zero rows")
	}
}

func TestEchoPassthrough(t *testing.T) {
	payload := map[string]any{"anything": "goes"}
	out, err := Echo(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, payload) {
		t.Fatalf("expect payload back, got %v", out)
	}
}

func TestContractForKnownEntries(t *testing.T) {
	for _, entry := range []string{EntryListItems, EntryCompute, EntryOffloadTable} {
		if ContractFor(entry) == nil {
			t.Fatalf("expect contract for %s", entry)
		}
	}
	if ContractFor(EntryEcho) != nil {
		t.Fatal("echo takes free-form input, expect nil contract")
	}
}

func TestMsgpackIntegerWidths(t *testing.T) {
	// MessagePack decodes small ints into narrower types than JSON's float64;
	// the field helpers normalize both.
	out, err := ListItems(context.Background(), map[string]any{
		"user_id": int8(7),
		"limit":   uint16(2),
	})
	if err != nil {
		t.Fatal(err)
	}
	items := out.(map[string]any)["items"].([]map[string]any)
	if len(items) != 2 {
		t.Fatalf("expect 2 items, got %d", len(items))
	}
}
