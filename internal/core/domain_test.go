package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-10-05")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2025 || d.Month() != 10 || d.Day() != 5 {
		t.Fatalf("unexpected parts: %d-%d-%d", d.Year(), d.Month(), d.Day())
	}
	for _, bad := range []string{"", "2025-1-5", "2025/10/05", "20251005", "2025-13-01"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{NewDate(2025, 10, 5)})
	if err != nil || string(b) != `{"d":"2025-10-05"}` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var in struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !in.D.In(2024, 2) || in.D.Day() != 29 {
		t.Fatalf("unexpected date: %s", in.D)
	}
	if err := json.Unmarshal([]byte(`{"d":""}`), &in); err != nil || !in.D.IsZero() {
		t.Fatalf("empty string should give zero date, got %s %v", in.D, err)
	}
}

func TestParseTxType(t *testing.T) {
	cases := map[string]TxType{"income": Income, "Expense": Expense, "수입": Income, " 지출 ": Expense}
	for in, want := range cases {
		got, err := ParseTxType(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q err=%v", in, got, err)
		}
	}
	if _, err := ParseTxType("transfer"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID:   1,
		Date:     NewDate(2025, 10, 5),
		Type:     Expense,
		Amount:   decimal.NewFromInt(10000),
		Category: "식비",
		Content:  "점심",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*Transaction)
		field  string
		want   error
	}{
		{func(tx *Transaction) { tx.Date = Date{Time: time.Time{}} }, "date", ErrMissingDate},
		{func(tx *Transaction) { tx.Type = "transfer" }, "type", ErrInvalidType},
		{func(tx *Transaction) { tx.Amount = decimal.Zero }, "amount", ErrInvalidAmount},
		{func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, "amount", ErrInvalidAmount},
		{func(tx *Transaction) { tx.Category = "  " }, "category", ErrEmptyCategory},
		{func(tx *Transaction) { tx.Content = "" }, "content", ErrEmptyContent},
	}
	for i, tc := range cases {
		tx := good
		tc.mutate(&tx)
		err := tx.Validate()
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field || !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %s/%v, got %v", i, tc.field, tc.want, err)
		}
	}
}

func TestGoalValidate(t *testing.T) {
	g := Goal{UserID: 1, Type: Expense, Year: 2025, Month: 10, Target: decimal.NewFromInt(20000)}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := g
	bad.Target = decimal.Zero
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	bad = g
	bad.Month = 13
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	if !v.Allows(Expense, "식비") || v.Allows(Income, "식비") {
		t.Fatalf("expense and income lists must be disjoint")
	}
	if !(Vocabulary{}).Allows(Income, "anything") {
		t.Fatalf("empty vocabulary should allow everything")
	}
	cats := v.Categories(Income)
	cats[0] = "changed"
	if v[Income][0] == "changed" {
		t.Fatalf("Categories must return a copy")
	}
	for in, want := range map[string]string{"": "", "전체": "", " all ": "", "식비": "식비"} {
		if got := NormalizeGoalCategory(in); got != want {
			t.Fatalf("NormalizeGoalCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
