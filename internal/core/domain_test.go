package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Currency
		wantErr bool
	}{
		{name: "canonical", in: "USD", want: USD},
		{name: "lower case", in: "ils", want: ILS},
		{name: "mixed case with spaces", in: "  Euro ", want: EURO},
		{name: "gbp", in: "gbp", want: GBP},
		{name: "iso spelling not accepted", in: "EUR", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "doge", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCurrency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCurrency(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseCurrency(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if err != nil && !errors.Is(err, ErrUnknownCurrency) {
				t.Errorf("ParseCurrency(%q) error = %v, want ErrUnknownCurrency", tt.in, err)
			}
		})
	}
}

func TestDraftValidate(t *testing.T) {
	good := Draft{Sum: 42.5, Currency: "usd", Category: "food", Description: "groceries"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	smallest := Draft{Sum: 0.01, Currency: "ILS", Category: "c", Description: "d"}
	if err := smallest.Validate(); err != nil {
		t.Fatalf("expected 0.01 to be accepted, got %v", err)
	}

	tests := []struct {
		name  string
		draft Draft
		field string
		want  error
	}{
		{
			name:  "zero sum",
			draft: Draft{Sum: 0, Currency: "USD", Category: "c", Description: "d"},
			field: "sum",
			want:  ErrInvalidSum,
		},
		{
			name:  "negative sum",
			draft: Draft{Sum: -5, Currency: "USD", Category: "c", Description: "d"},
			field: "sum",
			want:  ErrInvalidSum,
		},
		{
			name:  "NaN sum",
			draft: Draft{Sum: math.NaN(), Currency: "USD", Category: "c", Description: "d"},
			field: "sum",
			want:  ErrInvalidSum,
		},
		{
			name:  "unknown currency",
			draft: Draft{Sum: 1, Currency: "XXX", Category: "c", Description: "d"},
			field: "currency",
			want:  ErrUnknownCurrency,
		},
		{
			name:  "blank category",
			draft: Draft{Sum: 1, Currency: "USD", Category: "   ", Description: "d"},
			field: "category",
			want:  ErrEmptyCategory,
		},
		{
			name:  "blank description",
			draft: Draft{Sum: 1, Currency: "USD", Category: "c", Description: ""},
			field: "description",
			want:  ErrEmptyDescription,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if err == nil {
				t.Fatalf("Draft.Validate() = nil, want error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Draft.Validate() error = %v, want %v", err, tt.want)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Draft.Validate() error = %T, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Draft.Validate() field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := invalid("sum", ErrInvalidSum)
	if err.Error() != "sum: invalid sum" {
		t.Errorf("Error() = %q, want %q", err.Error(), "sum: invalid sum")
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
	rec, err := NewRecord(Draft{Sum: 12.5, Currency: " euro ", Category: " Food ", Description: " lunch "}, now)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	if rec.Currency != EURO {
		t.Errorf("Currency = %v, want EURO", rec.Currency)
	}
	if rec.Category != "Food" || rec.Description != "lunch" {
		t.Errorf("text fields not trimmed: %q %q", rec.Category, rec.Description)
	}
	if !rec.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, now)
	}
	if rec.Year != 2024 || rec.Month != 5 || rec.Day != 15 {
		t.Errorf("date parts = %d-%d-%d, want 2024-5-15", rec.Year, rec.Month, rec.Day)
	}
	if rec.InsertionDay != 15 {
		t.Errorf("InsertionDay = %d, want 15", rec.InsertionDay)
	}
	if rec.ID != 0 {
		t.Errorf("ID = %d, want 0 before storage assigns one", rec.ID)
	}

	if _, err := NewRecord(Draft{Sum: -1, Currency: "USD", Category: "c", Description: "d"}, now); err == nil {
		t.Fatalf("expected invalid draft to be rejected")
	}
}

func TestPatchApply(t *testing.T) {
	base := Record{
		ID:           7,
		Sum:          10,
		Currency:     USD,
		Category:     "food",
		Description:  "old",
		CreatedAt:    time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC),
		Year:         2024,
		Month:        5,
		Day:          15,
		InsertionDay: 15,
	}

	t.Run("partial update keeps other fields", func(t *testing.T) {
		sum := 22.5
		cat := " transport "
		got, err := (Patch{Sum: &sum, Category: &cat}).Apply(base)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got.Sum != 22.5 || got.Category != "transport" {
			t.Errorf("patched fields = %v %q", got.Sum, got.Category)
		}
		if got.Description != "old" || got.Currency != USD {
			t.Errorf("untouched fields changed: %q %v", got.Description, got.Currency)
		}
		if !got.CreatedAt.Equal(base.CreatedAt) || got.Year != 2024 || got.Month != 5 || got.Day != 15 {
			t.Errorf("timestamp changed without a date in the patch")
		}
	})

	t.Run("parseable date recomputes timestamp and parts", func(t *testing.T) {
		date := "2023-11-02"
		got, err := (Patch{Date: &date}).Apply(base)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got.Year != 2023 || got.Month != 11 || got.Day != 2 {
			t.Errorf("date parts = %d-%d-%d, want 2023-11-2", got.Year, got.Month, got.Day)
		}
		if got.InsertionDay != 15 {
			t.Errorf("InsertionDay = %d, want 15 (never rewritten)", got.InsertionDay)
		}
	})

	t.Run("unparseable date is ignored", func(t *testing.T) {
		date := "soon"
		sum := 99.0
		got, err := (Patch{Date: &date, Sum: &sum}).Apply(base)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got.Sum != 99 {
			t.Errorf("Sum = %v, want 99 (rest of patch still applies)", got.Sum)
		}
		if !got.CreatedAt.Equal(base.CreatedAt) || got.Year != 2024 || got.Month != 5 || got.Day != 15 {
			t.Errorf("timestamp changed on unparseable date")
		}
	})

	t.Run("invalid supplied fields are rejected", func(t *testing.T) {
		bad := -3.0
		if _, err := (Patch{Sum: &bad}).Apply(base); !errors.Is(err, ErrInvalidSum) {
			t.Errorf("Apply() error = %v, want ErrInvalidSum", err)
		}
		cur := "EUR"
		if _, err := (Patch{Currency: &cur}).Apply(base); !errors.Is(err, ErrUnknownCurrency) {
			t.Errorf("Apply() error = %v, want ErrUnknownCurrency", err)
		}
		blank := "  "
		if _, err := (Patch{Description: &blank}).Apply(base); !errors.Is(err, ErrEmptyDescription) {
			t.Errorf("Apply() error = %v, want ErrEmptyDescription", err)
		}
	})
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
		want time.Time
	}{
		{name: "rfc3339", in: "2024-05-15T10:30:00Z", ok: true, want: time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)},
		{name: "rfc3339 with offset", in: "2024-05-15T10:30:00+02:00", ok: true, want: time.Date(2024, 5, 15, 8, 30, 0, 0, time.UTC)},
		{name: "date only", in: "2024-05-15", ok: true, want: time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		{name: "date and time", in: "2024-05-15 10:30:00", ok: true, want: time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)},
		{name: "free text", in: "soon", ok: false},
		{name: "empty", in: "", ok: false},
		{name: "spaces", in: "   ", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDatePartsUTC(t *testing.T) {
	east := time.FixedZone("UTC+5", 5*3600)
	// 02:00 on June 1st east of Greenwich is still May 31st in UTC.
	y, m, d := DateParts(time.Date(2024, 6, 1, 2, 0, 0, 0, east))
	if y != 2024 || m != 5 || d != 31 {
		t.Errorf("DateParts() = %d-%d-%d, want 2024-5-31", y, m, d)
	}
}

func TestPeriodValidate(t *testing.T) {
	cases := []struct {
		p  Period
		ok bool
	}{
		{Period{Year: 2024, Month: 1}, true},
		{Period{Year: 2024, Month: 12}, true},
		{Period{Year: 2024, Month: 0}, false},
		{Period{Year: 2024, Month: 13}, false},
		{Period{Year: 0, Month: 5}, false},
		{Period{Year: -1, Month: 5}, false},
	}
	for i, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
