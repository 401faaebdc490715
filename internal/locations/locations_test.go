package locations

import "testing"

func TestGroupFor(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"bremen oriente", "BR-OR", "BREMEN"},
		{"bremen poniente", "BR-PON", "BREMEN"},
		{"talleres oriente", "TALL-OR", "TALLERES"},
		{"talleres poniente", "TALL-PON", "TALLERES"},
		{"lo errazuriz oriente", "LOE-OR", "LO ERRAZURIZ"},
		{"lo errazuriz poniente", "LOE-PON", "LO ERRAZURIZ"},
		{"unknown prefix", "XX-OR", "N/A"},
		{"empty", "", "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GroupFor(tt.code); got != tt.want {
				t.Errorf("GroupFor(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestGroupFor_AllCodesHaveAGroup(t *testing.T) {
	for _, code := range Codes() {
		if group := GroupFor(code); group == "N/A" {
			t.Errorf("valid code %q mapped to N/A", code)
		}
	}
}

func TestIsValid(t *testing.T) {
	for _, code := range Codes() {
		if !IsValid(code) {
			t.Errorf("expected %q to be valid", code)
		}
	}

	for _, code := range []string{"", "BR", "br-or", "BR-OR ", "TALLER-OR"} {
		if IsValid(code) {
			t.Errorf("expected %q to be invalid", code)
		}
	}
}

func TestCodes_FixedSetOfSix(t *testing.T) {
	codes := Codes()
	if len(codes) != 6 {
		t.Fatalf("expected 6 codes, got %d", len(codes))
	}

	// Callers must not be able to mutate the canonical set
	codes[0] = "HACKED"
	if Codes()[0] != "BR-OR" {
		t.Error("Codes() exposed internal slice to mutation")
	}
}
