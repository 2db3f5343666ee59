package trigger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const endpoint = "https://hn.algolia.com/api/v1/search?query="

func TestComposeURL(t *testing.T) {
	tests := []struct {
		name string
		term string
		want string
	}{
		{"simple term", "React", endpoint + "React"},
		{"spaces are escaped", "react hooks", endpoint + "react+hooks"},
		{"ampersand is escaped", "a&b", endpoint + "a%26b"},
		{"empty term", "", endpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposeURL(endpoint, tt.term); got != tt.want {
				t.Errorf("ComposeURL(%q) = %q, want %q", tt.term, got, tt.want)
			}
		})
	}
}

func TestValue_FirstSetAlwaysNotifies(t *testing.T) {
	v := New()

	var got []string
	v.Subscribe(func(value string) { got = append(got, value) })

	if !v.Set("") {
		t.Error("first Set should report a change even for the zero value")
	}
	if diff := cmp.Diff([]string{""}, got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestValue_NotifiesOnlyOnChange(t *testing.T) {
	v := New()

	var got []string
	v.Subscribe(func(value string) { got = append(got, value) })

	v.Set(endpoint + "React")
	v.Set(endpoint + "React")
	v.Set(endpoint + "Redux")
	v.Set(endpoint + "Redux")
	v.Set(endpoint + "React")

	want := []string{endpoint + "React", endpoint + "Redux", endpoint + "React"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestValue_SubscriberSeesCommittedValue(t *testing.T) {
	v := New()

	var seen string
	v.Subscribe(func(string) { seen = v.Get() })

	v.Set("x")
	if seen != "x" {
		t.Errorf("Get() inside subscriber = %q, want %q", seen, "x")
	}
}

func TestValue_MultipleSubscribersEachCalledOnce(t *testing.T) {
	v := New()

	a, b := 0, 0
	v.Subscribe(func(string) { a++ })
	v.Subscribe(func(string) { b++ })

	v.Set("x")
	if a != 1 || b != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", a, b)
	}
}
