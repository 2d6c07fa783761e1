package validate

import (
	"math"
	"strings"
	"testing"
)

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name string
		form Login
		want Errors
	}{
		{name: "valid", form: Login{Email: "a@b.co", Password: "x"}, want: Errors{}},
		{name: "empty", form: Login{}, want: Errors{"email": "Email is required", "password": "Password is required"}},
		{name: "bad email", form: Login{Email: "nope", Password: "pw"}, want: Errors{"email": "Invalid email format"}},
		{name: "whitespace password", form: Login{Email: "a@b.co", Password: "   "}, want: Errors{"password": "Password is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertErrors(t, ValidateLogin(tt.form), tt.want)
		})
	}
}

func TestValidateSignup(t *testing.T) {
	valid := Signup{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "password1", ConfirmPassword: "password1"}
	assertErrors(t, ValidateSignup(valid), Errors{})

	short := Signup{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "abc", ConfirmPassword: "xyz"}
	assertErrors(t, ValidateSignup(short), Errors{
		"password":        "Password must be at least 8 characters",
		"confirmPassword": "Passwords do not match",
	})

	assertErrors(t, ValidateSignup(Signup{}), Errors{
		"firstName":       "First Name is required",
		"lastName":        "Last Name is required",
		"email":           "Email is required",
		"password":        "Password is required",
		"confirmPassword": "Confirm Password is required",
	})

	padded := Signup{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "  supersafe", ConfirmPassword: "supersafe"}
	assertErrors(t, ValidateSignup(padded), Errors{"confirmPassword": "Passwords do not match"})
	padded.ConfirmPassword = padded.Password
	assertErrors(t, ValidateSignup(padded), Errors{})

	long := strings.Repeat("p", MaxPasswordBytes+1)
	assertErrors(t, ValidateSignup(Signup{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: long, ConfirmPassword: long}),
		Errors{"password": "Password must be at most 72 bytes"})
	limit := strings.Repeat("p", MaxPasswordBytes)
	assertErrors(t, ValidateSignup(Signup{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: limit, ConfirmPassword: limit}), Errors{})
}

func TestValidateProjectSettings(t *testing.T) {
	form := ProjectSettings{ProjectName: "walk", XSensitivity: 50, YSensitivity: 100, OutputFormat: "bvh", VideoPath: "clip.MP4"}
	assertErrors(t, ValidateProjectSettings(form, true), Errors{})

	bad := ProjectSettings{ProjectName: "  ", XSensitivity: -1, YSensitivity: 101, OutputFormat: "fbx", VideoPath: "clip.mov"}
	assertErrors(t, ValidateProjectSettings(bad, true), Errors{
		"projectName":  "Project Name is required",
		"xSensitivity": "X Sensitivity must be between 0 and 100",
		"ySensitivity": "Y Sensitivity must be between 0 and 100",
		"outputFormat": "Unsupported output format",
		"video":        "Only .mp4 videos are supported",
	})

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		odd := ProjectSettings{ProjectName: "walk", XSensitivity: v, YSensitivity: v}
		assertErrors(t, ValidateProjectSettings(odd, false), Errors{
			"xSensitivity": "X Sensitivity must be between 0 and 100",
			"ySensitivity": "Y Sensitivity must be between 0 and 100",
		})
	}

	noVideo := ProjectSettings{ProjectName: "walk"}
	assertErrors(t, ValidateProjectSettings(noVideo, false), Errors{})
	assertErrors(t, ValidateProjectSettings(noVideo, true), Errors{"video": "Video file is required"})
}

func TestValidatePasswordReset(t *testing.T) {
	assertErrors(t, ValidatePasswordReset("user@example.com"), Errors{})
	assertErrors(t, ValidatePasswordReset("user@"), Errors{"email": "Invalid email format"})
}

func assertErrors(t *testing.T, got, want Errors) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d errors got %d: %v", len(want), len(got), got)
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Fatalf("field %s: expected %q got %q", field, msg, got[field])
		}
	}
	if got.OK() != (len(want) == 0) {
		t.Fatalf("OK() mismatch for %v", got)
	}
}
