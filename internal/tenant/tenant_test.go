package tenant

import "testing"

func TestNew_RejectsNonPositiveID(t *testing.T) {
	tests := []struct {
		name     string
		tenantID int64
		wantErr  bool
	}{
		{"positive id", 4, false},
		{"zero id", 0, true},
		{"negative id", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tenantID, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%d) error = %v, wantErr %v", tt.tenantID, err, tt.wantErr)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  bool // period expected
	}{
		{"both valid", "2025-01-01", "2025-01-31", true},
		{"start only", "2025-01-01", "", false},
		{"end only", "", "2025-01-31", false},
		{"neither", "", "", false},
		{"malformed start", "01/01/2025", "2025-01-31", false},
		{"malformed end", "2025-01-01", "soon", false},
		{"end before start", "2025-02-01", "2025-01-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePeriod(tt.start, tt.end)
			if (got != nil) != tt.want {
				t.Errorf("ParsePeriod(%q, %q) = %v, want period: %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestPeriodLabel(t *testing.T) {
	p := ParsePeriod("2025-01-01", "2025-01-31")
	if p == nil {
		t.Fatal("expected a period")
	}
	if got := p.Label(); got != "From 2025-01-01 to 2025-01-31" {
		t.Errorf("Label() = %q", got)
	}

	var none *Period
	if got := none.Label(); got != "All time" {
		t.Errorf("nil Label() = %q, want All time", got)
	}
}
