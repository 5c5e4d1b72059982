package instrument

import (
	"errors"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		inst    Instrument
		wantErr error
	}{
		{name: "valid", inst: Instrument{Ticker: "MEMCOIN", Name: "Meme Coin"}},
		{name: "two letter ticker", inst: Instrument{Ticker: "AB", Name: "Ab Corp"}},
		{name: "ten letter ticker", inst: Instrument{Ticker: "ABCDEFGHIJ", Name: "Alphabet Soup"}},
		{name: "too short", inst: Instrument{Ticker: "A", Name: "A"}, wantErr: ErrInvalidTicker},
		{name: "too long", inst: Instrument{Ticker: "ABCDEFGHIJK", Name: "Long"}, wantErr: ErrInvalidTicker},
		{name: "lowercase", inst: Instrument{Ticker: "memcoin", Name: "Meme"}, wantErr: ErrInvalidTicker},
		{name: "digits", inst: Instrument{Ticker: "MEM3", Name: "Meme"}, wantErr: ErrInvalidTicker},
		{name: "empty name", inst: Instrument{Ticker: "MEMCOIN", Name: ""}, wantErr: ErrInvalidTicker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.inst)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Register: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Instrument{Ticker: "MEMCOIN", Name: "Meme Coin"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Instrument{Ticker: "MEMCOIN", Name: "Other"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate Register = %v, want ErrAlreadyExists", err)
	}
}

func TestGetRemoveList(t *testing.T) {
	r := NewRegistry()
	r.Register(Instrument{Ticker: "BB", Name: "Beta"})
	r.Register(Instrument{Ticker: "AA", Name: "Alpha"})

	got, err := r.Get("AA")
	if err != nil || got.Name != "Alpha" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	list := r.List()
	if len(list) != 2 || list[0].Ticker != "AA" || list[1].Ticker != "BB" {
		t.Errorf("List not sorted by ticker: %+v", list)
	}

	if err := r.Remove("AA"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Exists("AA") {
		t.Error("removed instrument still exists")
	}
	if err := r.Remove("AA"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
	if _, err := r.Get("AA"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove = %v, want ErrNotFound", err)
	}
}
