package adsb

import "testing"

func TestRegistrationFromICAO(t *testing.T) {
	tests := []struct {
		icao string
		want string
	}{
		{"A00001", "N1"},
		{"a00002", "N1A"},
		{"A061D9", "N12345"},
		{"A4A38A", "N3985B"},
		{"ADF7C7", "N99999"},
		{"C00001", "C-FAAA"},
		{"C0044B", "C-FBQG"},
		{"C04591", "C-GAIY"},
	}

	for _, tt := range tests {
		t.Run(tt.icao, func(t *testing.T) {
			got, err := RegistrationFromICAO(tt.icao)
			if err != nil {
				t.Fatalf("RegistrationFromICAO: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRegistrationFromICAOErrors(t *testing.T) {
	for _, icao := range []string{"", "A0001", "A0000G", "ADF7C8", "A00000", "C08972", "738065"} {
		if reg, err := RegistrationFromICAO(icao); err == nil {
			t.Errorf("Expected error for %q, got %s", icao, reg)
		}
	}
}

func TestConvertDerivesRegistration(t *testing.T) {
	lat, lon := 43.7, -79.6
	c, ok := ADSBTarget{Hex: "c0044b", Lat: &lat, Lon: &lon}.Convert()
	if !ok {
		t.Fatal("Expected a candidate")
	}
	if c.Registration != "C-FBQG" {
		t.Errorf("Expected derived registration, got %q", c.Registration)
	}

	c, _ = ADSBTarget{Hex: "c0044b", Registration: "C-GXYZ", Lat: &lat, Lon: &lon}.Convert()
	if c.Registration != "C-GXYZ" {
		t.Errorf("Expected reported registration to win, got %q", c.Registration)
	}
}
