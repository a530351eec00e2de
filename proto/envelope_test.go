package proto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestArgsWireFormat(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Args{"old.txt", "new.txt"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"0":"old.txt","1":"new.txt"}`
	if string(b) != want {
		t.Errorf("Args marshal = %s, want %s", b, want)
	}

	var a Args
	if err := json.Unmarshal(b, &a); err != nil {
		t.Fatal(err)
	}
	if len(a) != 2 || a[0] != "old.txt" || a[1] != "new.txt" {
		t.Errorf("Args round trip = %v", a)
	}
}

func TestArgsEmpty(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Args(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("empty Args marshal = %s, want {}", b)
	}

	var a Args
	if err := json.Unmarshal([]byte("{}"), &a); err != nil {
		t.Fatal(err)
	}
	if a != nil {
		t.Errorf("empty Args unmarshal = %v, want nil", a)
	}
}

func TestArgsRejectsBadKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
	}{
		{"gap", `{"0":"a","2":"b"}`},
		{"non-numeric", `{"first":"a"}`},
		{"negative", `{"-1":"a"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a Args
			if err := json.Unmarshal([]byte(tc.in), &a); err == nil {
				t.Errorf("unmarshal %s succeeded, want error", tc.in)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	req := &Request{
		AuthToken:  "tok",
		Command:    CmdList,
		Args:       Args{"/srv/files"},
		CurrentDir: "/srv/files",
		Data:       Payload(ListRequest{TerminalWidth: 120}),
	}
	b, err := EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.AuthToken != "tok" || got.Command != CmdList || got.CurrentDir != "/srv/files" {
		t.Errorf("decoded request = %+v", got)
	}
	var lr ListRequest
	if err := json.Unmarshal(got.Data, &lr); err != nil || lr.TerminalWidth != 120 {
		t.Errorf("decoded payload = %+v, err = %v", lr, err)
	}
}

func TestDecodeRequestRejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	_, err := DecodeRequest([]byte(`{"auth_token":"","command":99,"command_args":{},"current_dir":"/"}`))
	var malformed *MalformedEnvelopeError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedEnvelopeError", err)
	}
}

func TestDecodeRequestRejectsBadJSON(t *testing.T) {
	t.Parallel()

	_, err := DecodeRequest([]byte(`{"command":`))
	var malformed *MalformedEnvelopeError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedEnvelopeError", err)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &Response{
		Accept: true,
		Status: StatusUserLoggedIn,
		Data:   Payload(LoginResponse{AccessPath: "/srv/files/alice", AuthToken: "tok"}),
	}
	b, err := EncodeResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeResponse(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Accept || got.Status != StatusUserLoggedIn {
		t.Errorf("decoded response = %+v", got)
	}
	var lr LoginResponse
	if err := json.Unmarshal(got.Data, &lr); err != nil || lr.AuthToken != "tok" {
		t.Errorf("decoded payload = %+v, err = %v", lr, err)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want Command
	}{
		{"login", CmdLogin},
		{"upload", CmdUpload},
		{"ls", CmdList},
		{"dir", CmdPwd},
		{"exit", CmdQuit},
	}
	for _, tc := range cases {
		got, ok := ParseCommand(tc.name)
		if !ok || got != tc.want {
			t.Errorf("ParseCommand(%q) = %v, %v; want %v, true", tc.name, got, ok, tc.want)
		}
	}

	if _, ok := ParseCommand("bogus"); ok {
		t.Error("ParseCommand(bogus) succeeded")
	}
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	if got := CmdDownload.String(); got != "download" {
		t.Errorf("CmdDownload.String() = %q", got)
	}
	if got := Command(99).String(); got != "unknown" {
		t.Errorf("Command(99).String() = %q", got)
	}
}

func TestStatusFamilies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    Status
		success   bool
		failure   bool
		transient bool
	}{
		{StatusCommandOK, true, false, false},
		{StatusUserLoggedIn, true, false, false},
		{StatusChangeDirectoryAccepted, true, false, false},
		{StatusFileUnavailable, false, true, false},
		{StatusNotLoggedIn, false, true, false},
		{StatusPathNotDirectory, false, true, false},
		{StatusNeedPassword, false, false, true},
		{StatusRestartMarker, false, false, true},
	}
	for _, tc := range cases {
		if got := tc.status.IsSuccess(); got != tc.success {
			t.Errorf("%d IsSuccess = %v, want %v", tc.status, got, tc.success)
		}
		if got := tc.status.IsFailure(); got != tc.failure {
			t.Errorf("%d IsFailure = %v, want %v", tc.status, got, tc.failure)
		}
		if got := tc.status.IsTransient(); got != tc.transient {
			t.Errorf("%d IsTransient = %v, want %v", tc.status, got, tc.transient)
		}
	}
}

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	if got := StatusPermissionDenied.Message(); got != "Permission denied." {
		t.Errorf("454 message = %q", got)
	}
	if got := Status(999).Message(); got != "Unknown status code." {
		t.Errorf("unknown status message = %q", got)
	}
}
