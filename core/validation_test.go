package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidatePaper(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		paper   *Paper
		wantErr error
	}{
		{
			name: "valid paper",
			paper: &Paper{
				ID:        "2401.00001v1",
				Title:     "Attention Is Still All You Need",
				Published: validTime,
			},
			wantErr: nil,
		},
		{
			name: "valid paper without enrichment",
			paper: &Paper{
				ID:        "2401.00001v1",
				Title:     "A Paper",
				Published: validTime,
				Summary:   nil,
				Embedding: nil,
			},
			wantErr: nil,
		},
		{
			name:    "nil paper",
			paper:   nil,
			wantErr: ErrInvalidPaper,
		},
		{
			name: "empty id",
			paper: &Paper{
				ID:        "  ",
				Title:     "A Paper",
				Published: validTime,
			},
			wantErr: ErrEmptyID,
		},
		{
			name: "empty title",
			paper: &Paper{
				ID:        "2401.00001v1",
				Published: validTime,
			},
			wantErr: ErrEmptyTitle,
		},
		{
			name: "future publication",
			paper: &Paper{
				ID:        "2401.00001v1",
				Title:     "A Paper",
				Published: futureTime,
			},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaper(tt.paper)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePaper() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Errorf("ValidatePaper() error = nil, want %v", tt.wantErr)
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePaper() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidPaper) {
				t.Errorf("ValidatePaper() error = %v, want wrapped %v", err, ErrInvalidPaper)
			}
		})
	}
}

func TestIsValidTimestamp(t *testing.T) {
	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{
			name: "past timestamp",
			ts:   time.Now().Add(-1 * time.Hour),
			want: true,
		},
		{
			name: "zero timestamp",
			ts:   time.Time{},
			want: true,
		},
		{
			name: "within clock skew",
			ts:   time.Now().Add(time.Minute),
			want: true,
		},
		{
			name: "future timestamp",
			ts:   time.Now().Add(24 * time.Hour),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTimestamp(tt.ts); got != tt.want {
				t.Errorf("IsValidTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}
