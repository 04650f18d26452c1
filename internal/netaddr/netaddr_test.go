package netaddr

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Addr
		wantErr bool
	}{
		{
			name: "prefixed",
			in:   "IP:192.168.1.2:28000",
			want: Addr{IP: [4]byte{192, 168, 1, 2}, Port: 28000},
		},
		{
			name: "bare host port",
			in:   "10.0.0.1:27950",
			want: Addr{IP: [4]byte{10, 0, 0, 1}, Port: 27950},
		},
		{
			name: "broadcast",
			in:   "IP:BROADCAST:28000",
			want: Broadcast(28000),
		},
		{
			name:    "missing port",
			in:      "IP:192.168.1.2",
			wantErr: true,
		},
		{
			name:    "bad port",
			in:      "IP:192.168.1.2:99999",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	a := Addr{IP: [4]byte{198, 74, 33, 35}, Port: 28000}
	got, err := Parse(a.String())
	if err != nil {
		t.Fatalf("Parse(String()): %v", err)
	}
	if got != a {
		t.Errorf("round trip = %v, want %v", got, a)
	}

	b := Broadcast(28000)
	if b.String() != "IP:BROADCAST:28000" {
		t.Errorf("broadcast String() = %q", b.String())
	}
	if !b.IsBroadcast() {
		t.Error("IsBroadcast() = false for broadcast sentinel")
	}
}

func TestSet(t *testing.T) {
	var s Set
	a := Addr{IP: [4]byte{1, 2, 3, 4}, Port: 1000}
	b := Addr{IP: [4]byte{1, 2, 3, 4}, Port: 1001}

	s.Add(a)
	s.Add(a) // duplicate
	s.Add(b)
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if !s.Contains(a) || !s.Contains(b) {
		t.Error("Contains failed for members")
	}

	s.Remove(a)
	if s.Contains(a) {
		t.Error("Contains(a) after Remove")
	}
	if s.Len() != 1 {
		t.Errorf("Len after remove = %d, want 1", s.Len())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
}
