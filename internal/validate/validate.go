// Package validate holds the form checks shared by the API handlers and the client.
package validate

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"
)

var emailRx = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// Errors maps a form field name to its message. An empty map means the input is valid.
type Errors map[string]string

// OK reports whether no field failed validation.
func (e Errors) OK() bool { return len(e) == 0 }

// Login carries the login form fields.
type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup carries the signup form fields.
type Signup struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ProjectSettings carries the upload form fields. Sensitivities are on the 0-100 slider scale.
type ProjectSettings struct {
	ProjectName  string
	XSensitivity float64
	YSensitivity float64
	Stationary   bool
	OutputFormat string
	VideoPath    string
}

// OutputFormats lists the animation formats an upload may request.
var OutputFormats = []string{"bvh"}

// ValidateLogin checks the login form.
func ValidateLogin(form Login) Errors {
	errs := Errors{}

	if msg := Email(form.Email); msg != "" {
		errs["email"] = msg
	}
	if strings.TrimSpace(form.Password) == "" {
		errs["password"] = "Password is required"
	}

	return errs
}

// ValidateSignup checks the signup form.
func ValidateSignup(form Signup) Errors {
	errs := Errors{}

	if strings.TrimSpace(form.FirstName) == "" {
		errs["firstName"] = "First Name is required"
	}
	if strings.TrimSpace(form.LastName) == "" {
		errs["lastName"] = "Last Name is required"
	}
	if msg := Email(form.Email); msg != "" {
		errs["email"] = msg
	}

	// The password is stored exactly as typed; blanks only count against its length.
	switch password := strings.TrimSpace(form.Password); {
	case password == "":
		errs["password"] = "Password is required"
	case len(password) < MinPasswordLength:
		errs["password"] = "Password must be at least 8 characters"
	case len(form.Password) > MaxPasswordBytes:
		errs["password"] = "Password must be at most 72 bytes"
	}

	switch {
	case strings.TrimSpace(form.ConfirmPassword) == "":
		errs["confirmPassword"] = "Confirm Password is required"
	case form.ConfirmPassword != form.Password:
		errs["confirmPassword"] = "Passwords do not match"
	}

	return errs
}

// ValidatePasswordReset checks a password reset request form.
func ValidatePasswordReset(email string) Errors {
	errs := Errors{}
	if msg := Email(email); msg != "" {
		errs["email"] = msg
	}
	return errs
}

// ValidateProjectSettings checks the upload form. VideoPath is only checked when requireVideo is set.
func ValidateProjectSettings(form ProjectSettings, requireVideo bool) Errors {
	errs := Errors{}

	if msg := ProjectName(form.ProjectName); msg != "" {
		errs["projectName"] = msg
	}
	if !sensitivity(form.XSensitivity) {
		errs["xSensitivity"] = "X Sensitivity must be between 0 and 100"
	}
	if !sensitivity(form.YSensitivity) {
		errs["ySensitivity"] = "Y Sensitivity must be between 0 and 100"
	}
	if form.OutputFormat != "" && !supportedFormat(form.OutputFormat) {
		errs["outputFormat"] = "Unsupported output format"
	}
	if requireVideo {
		switch {
		case strings.TrimSpace(form.VideoPath) == "":
			errs["video"] = "Video file is required"
		case !IsMP4(form.VideoPath):
			errs["video"] = "Only .mp4 videos are supported"
		}
	}

	return errs
}

// Email returns the message for an invalid email, or "" when it is acceptable.
func Email(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "Email is required"
	}
	if !emailRx.MatchString(email) {
		return "Invalid email format"
	}
	return ""
}

// ProjectName returns the message for an invalid project name, or "".
func ProjectName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Project Name is required"
	}
	return ""
}

// AvatarName returns the message for an invalid avatar name, or "".
func AvatarName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Avatar Name is required"
	}
	return ""
}

// IsMP4 reports whether the filename carries an .mp4 extension.
func IsMP4(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".mp4")
}

// sensitivity reports whether v is a finite value on the 0-100 scale. NaN fails every
// comparison, so it is rejected explicitly.
func sensitivity(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func supportedFormat(format string) bool {
	for _, f := range OutputFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
