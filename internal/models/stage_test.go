package models

import (
	"errors"
	"testing"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"requirements", StageRequirements, false},
		{"userStories", StageUserStories, false},
		{"user-stories", StageUserStories, false},
		{"fit_gap", StageFitGap, false},
		{"FitGap", StageFitGap, false},
		{"summary", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	if p, err := ParsePriority(" HIGH "); err != nil || p != PriorityHigh {
		t.Errorf("ParsePriority = %q, %v", p, err)
	}
	if f, err := ParseFit("partial"); err != nil || f != FitPartial {
		t.Errorf("ParseFit = %q, %v", f, err)
	}
	if e, err := ParseEffort("med"); err != nil || e != EffortMedium {
		t.Errorf("ParseEffort = %q, %v", e, err)
	}
	if _, err := ParseInputType("podcast"); err == nil {
		t.Error("ParseInputType(podcast) expected error")
	}
}

func TestNewArtifact(t *testing.T) {
	a := NewArtifact("/tmp/uploads/Spec.PDF", InputBRD, make([]byte, 2*1024*1024))

	if a.Name != "Spec.PDF" {
		t.Errorf("Name = %q", a.Name)
	}
	if a.Ext != "pdf" {
		t.Errorf("Ext = %q, want pdf", a.Ext)
	}
	if a.MIMEType != "application/pdf" {
		t.Errorf("MIMEType = %q", a.MIMEType)
	}
	if a.SizeMB() != 2 {
		t.Errorf("SizeMB() = %v, want 2", a.SizeMB())
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(nil)
	if got := len(c.Systems()); got != 4 {
		t.Fatalf("default catalog size = %d, want 4", got)
	}

	pair, err := c.Pair("oracle erp", "d365 f&o")
	if err != nil {
		t.Fatalf("Pair() error = %v", err)
	}
	if pair != DefaultSystemPair {
		t.Errorf("Pair() = %+v, want %+v", pair, DefaultSystemPair)
	}

	if _, err := c.Pair("SAP S/4HANA", SystemD365CE); !errors.Is(err, ErrUnknownSystem) {
		t.Errorf("Pair() error = %v, want ErrUnknownSystem", err)
	}

	custom := NewCatalog([]string{"SAP", " SAP ", "", "Workday"})
	if got := custom.Systems(); len(got) != 2 || got[0] != "SAP" || got[1] != "Workday" {
		t.Errorf("custom catalog = %v", got)
	}
}
