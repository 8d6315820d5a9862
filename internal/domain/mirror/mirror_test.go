package mirror

import (
	"errors"
	"testing"
)

func TestNormalizeTimestampVariants(t *testing.T) {
	want := "2024-03-01T10:20:30Z"
	inputs := []string{
		"2024-03-01T10:20:30Z",
		"2024-03-01T10:20:30+00:00",
		"2024-03-01T12:20:30+02:00",
		"2024-03-01T10:20:30",
		"2024-03-01 10:20:30",
		"2024-03-01 10:20:30.000000+00:00",
		"2024-03-01T10:20:30.123Z",
	}
	for _, input := range inputs {
		got, err := NormalizeTimestamp(input)
		if err != nil {
			t.Fatalf("NormalizeTimestamp(%q) error = %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeTimestamp(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := NormalizeTimestamp("yesterday"); !errors.Is(err, ErrValidation) {
		t.Fatalf("NormalizeTimestamp(garbage) error = %v, want ErrValidation", err)
	}
}

func TestClassify(t *testing.T) {
	if got := Classify("", false, "2024-03-01T10:20:30Z"); got != DecisionCreate {
		t.Fatalf("missing local = %s", got)
	}
	if got := Classify("2024-03-01T10:20:30+00:00", true, "2024-03-01T10:20:30Z"); got != DecisionUnchanged {
		t.Fatalf("same instant different format = %s", got)
	}
	if got := Classify("2024-03-01 10:20:30", true, "2024-03-01T10:20:30Z"); got != DecisionUnchanged {
		t.Fatalf("naive local = %s", got)
	}
	if got := Classify("2024-03-01T10:20:30Z", true, "2024-03-01T10:20:31Z"); got != DecisionUpdate {
		t.Fatalf("different instant = %s", got)
	}
	if got := Classify("garbage", true, "2024-03-01T10:20:31Z"); got != DecisionUpdate {
		t.Fatalf("garbage local = %s", got)
	}
}

func TestShouldNotifyCutoff(t *testing.T) {
	follow := "2024-05-01T00:00:00Z"

	cases := []struct {
		name      string
		createdAt string
		updatedAt string
		want      bool
	}{
		{"both before", "2024-04-01T00:00:00Z", "2024-04-30T23:59:59Z", false},
		{"updated equal", "2024-04-01T00:00:00Z", "2024-05-01T00:00:00Z", false},
		{"updated after", "2024-04-01T00:00:00Z", "2024-05-01T00:00:01Z", true},
		{"created after", "2024-05-02T00:00:00Z", "2024-05-02T00:00:00Z", true},
	}
	for _, tc := range cases {
		got, err := ShouldNotify(tc.createdAt, tc.updatedAt, follow)
		if err != nil {
			t.Fatalf("%s: ShouldNotify() error = %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: ShouldNotify() = %v, want %v", tc.name, got, tc.want)
		}
	}

	got, err := ShouldNotify("2024-05-02T00:00:00Z", "2024-05-02T00:00:00Z", "")
	if err != nil || got {
		t.Fatalf("empty follow date = %v, %v", got, err)
	}
}

func TestParseRefsAndIDs(t *testing.T) {
	owner, name, err := ParseRepositoryRef(" octo/hello ")
	if err != nil || owner != "octo" || name != "hello" {
		t.Fatalf("ParseRepositoryRef() = %q %q %v", owner, name, err)
	}
	if _, _, err := ParseRepositoryRef("octo"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseRepositoryRef(octo) error = %v", err)
	}

	if n, err := ParseIssueNumber("10"); err != nil || n != 10 {
		t.Fatalf("ParseIssueNumber(10) = %d %v", n, err)
	}
	for _, raw := range []string{"abc", "0", "-3", ""} {
		if _, err := ParseIssueNumber(raw); !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseIssueNumber(%q) error = %v", raw, err)
		}
	}
	if _, err := ParseCommentID("12x"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseCommentID(12x) error = %v", err)
	}
}

func TestRemoteErrorUnwrapsToKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailable("GET", "https://api.github.com/repos/o/r", 0, "", cause)

	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("errors.Is chain broken: %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("unavailable must not match ErrNotFound")
	}

	invalid := NewInvalidRequest("GET", "u", 422, "Validation Failed", []byte(`{"message":"Validation Failed"}`))
	remote, ok := AsRemoteError(invalid)
	if !ok || remote.Code != InvalidRequestCode || string(remote.Payload) != `{"message":"Validation Failed"}` {
		t.Fatalf("invalid request = %+v", remote)
	}
}

func TestNormalizeEnums(t *testing.T) {
	if got := NormalizeLockReason("too heated"); got == nil || *got != LockReasonTooHeated {
		t.Fatalf("NormalizeLockReason() = %v", got)
	}
	if got := NormalizeStateReason(""); got != nil {
		t.Fatalf("NormalizeStateReason(\"\") = %v, want nil", *got)
	}
	if got := NormalizeStateReason("not_planned"); got == nil || *got != StateReasonNotPlanned {
		t.Fatalf("NormalizeStateReason() = %v", got)
	}
	for _, raw := range []string{"duplicate", "bogus"} {
		if got := NormalizeStateReason(raw); got != nil {
			t.Fatalf("NormalizeStateReason(%q) = %q, want nil", raw, *got)
		}
	}
	if got := NormalizeLockReason("angry"); got != nil {
		t.Fatalf("NormalizeLockReason(\"angry\") = %q, want nil", *got)
	}
}
