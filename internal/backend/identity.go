package backend

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// InstructorIDFields lists, in priority order, every field the backend has
// used for the instructor/assistant id. The misspelling comes first because it
// is what the login endpoint actually sends.
var InstructorIDFields = []string{
	"asisstantId",
	"assistantid", "assistantId", "AssistantId", "assistant_id",
	"instructorId", "InstructorId", "instructor_id",
	"id", "Id", "ID",
	"userId", "UserId", "user_id",
	"employeeId", "EmployeeId", "employee_id",
	"teacherId", "TeacherId", "teacher_id",
}

// TokenFields lists, in priority order, the fields a bearer token may arrive in.
var TokenFields = []string{"token", "accessToken", "authToken", "access_token", "bearer"}

var expirationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Identity is what a login response resolves to.
type Identity struct {
	Email        string
	InstructorID int64
	IDField      string
	Token        string
	ExpiresAt    time.Time
	DisplayName  string
	Role         string
}

// HasToken reports whether the backend issued a bearer token.
func (id Identity) HasToken() bool { return id.Token != "" }

// ResolveIdentity probes a login response for the instructor id, token, and
// expiry. A missing token is not an error; a missing id is ErrNoIdentity.
func ResolveIdentity(raw []byte, email string) (Identity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return Identity{}, errors.Wrap(err, "decode login response")
	}

	ident := Identity{
		Email:       email,
		Token:       firstString(body, TokenFields),
		DisplayName: firstString(body, []string{"displayName", "name"}),
		Role:        firstString(body, []string{"role"}),
	}

	id, field, ok := ProbeID(body, InstructorIDFields)
	if !ok {
		if user, isObj := body["user"].(map[string]interface{}); isObj {
			id, field, ok = ProbeID(user, InstructorIDFields)
			field = "user." + field
		}
	}
	if !ok {
		return ident, ErrNoIdentity
	}
	ident.InstructorID = id
	ident.IDField = field
	ident.ExpiresAt = expiry(body, ident.Token)
	return ident, nil
}

// ProbeID returns the first field in names whose value is a finite, whole
// number, either as a JSON number or a numeric string.
func ProbeID(obj map[string]interface{}, names []string) (int64, string, bool) {
	for _, name := range names {
		v, ok := obj[name]
		if !ok || v == nil {
			continue
		}
		if n, ok := finiteNumber(v); ok {
			return n, name, true
		}
	}
	return 0, "", false
}

// finiteNumber accepts any finite JSON number or numeric string. Fractions
// win like whole numbers and are truncated to the integer id.
func finiteNumber(v interface{}) (int64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func firstString(obj map[string]interface{}, names []string) string {
	for _, name := range names {
		if s, ok := obj[name].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// expiry reads the "expiration" field, falling back to the exp claim of a
// JWT token. The token signature cannot be checked here and is not.
func expiry(body map[string]interface{}, token string) time.Time {
	if raw, ok := body["expiration"].(string); ok {
		for _, layout := range expirationLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t
			}
		}
	}
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
