package workflow

import "testing"

func TestNewCapability_NormalizesEmptyFramework(t *testing.T) {
	cap := NewCapability("python", "pip", "")

	if cap.ApplicationFramework != NoFramework {
		t.Errorf("Expected framework %q, got %q", NoFramework, cap.ApplicationFramework)
	}
}

func TestNewCapability_KeepsExplicitFramework(t *testing.T) {
	cap := NewCapability("ruby", "bundler", "rails")

	if cap.ApplicationFramework != "rails" {
		t.Errorf("Expected framework %q, got %q", "rails", cap.ApplicationFramework)
	}
}

func TestCapability_String(t *testing.T) {
	cap := NewCapability("nodejs", "npm", "")

	want := "nodejs/npm/none"
	if cap.String() != want {
		t.Errorf("Expected %q, got %q", want, cap.String())
	}
}

func TestCapability_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cap     Capability
		wantErr bool
	}{
		{
			name:    "fully populated capability is valid",
			cap:     NewCapability("python", "pip", ""),
			wantErr: false,
		},
		{
			name:    "explicit framework is valid",
			cap:     NewCapability("ruby", "bundler", "rails"),
			wantErr: false,
		},
		{
			name:    "missing language is invalid",
			cap:     Capability{DependencyManager: "pip", ApplicationFramework: NoFramework},
			wantErr: true,
		},
		{
			name:    "missing dependency manager is invalid",
			cap:     Capability{Language: "python", ApplicationFramework: NoFramework},
			wantErr: true,
		},
		{
			name:    "missing framework is invalid",
			cap:     Capability{Language: "python", DependencyManager: "pip"},
			wantErr: true,
		},
		{
			name:    "zero value is invalid",
			cap:     Capability{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cap.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected wantErr=%v, got error: %v", tt.wantErr, err)
			}
		})
	}
}

func TestCapability_MapKeyEquality(t *testing.T) {
	// Capabilities are used as registry map keys, so two triples built from
	// equivalent inputs must compare equal.
	a := NewCapability("python", "pip", "")
	b := NewCapability("python", "pip", NoFramework)

	if a != b {
		t.Errorf("Expected %v and %v to be equal", a, b)
	}

	m := map[Capability]string{a: "python-pip"}
	if m[b] != "python-pip" {
		t.Error("Expected equivalent capability to hit the same map entry")
	}
}
