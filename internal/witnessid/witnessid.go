// Package witnessid mints and parses witness ids, the deterministic
// human-readable names given to captured interactions.
//
// An id has the shape
//
//	{tag}_{METHOD}_{path-slug}_{body-hash}_{timestamp}
//
// e.g. smoke_GET_api-users_00000000_20260208T1430. Everything except the
// minute-resolution timestamp is derived from request content alone.
package witnessid

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// EmptyBodyHash is the hash segment used when a request carries no body.
	EmptyBodyHash = "00000000"

	// TimestampLayout formats the capture minute in UTC.
	TimestampLayout = "20060102T1504"

	// RootSlug names requests whose path reduces to nothing.
	RootSlug = "root"

	maxSlugLen  = 60
	hashLen     = 8
	minSegments = 5
)

var (
	// ErrInvalidArgument is returned by Generate for unusable inputs.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFormat is returned by Parse for strings that are not witness ids.
	ErrFormat = errors.New("malformed witness id")
)

var (
	nonSlugChars = regexp.MustCompile(`[^A-Za-z0-9-]`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// ID is a parsed witness id. Two ids are equal when their Value is equal.
type ID struct {
	Value     string
	Tag       string
	Method    string
	PathSlug  string
	BodyHash  string
	Timestamp string
}

func (id ID) String() string { return id.Value }

// IsZero reports whether id was never set.
func (id ID) IsZero() bool { return id.Value == "" }

// MarshalText encodes the id as its string form.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Value), nil
}

// UnmarshalText parses the string form back into its fields.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Generator mints ids against a clock.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a Generator using now as its clock. A nil now uses
// the wall clock.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Generate mints an id stamped with the generator's current time.
func (g *Generator) Generate(tag, method, path string, body any) (ID, error) {
	return GenerateAt(g.now(), tag, method, path, body)
}

// Generate mints an id stamped with the wall clock.
func Generate(tag, method, path string, body any) (ID, error) {
	return GenerateAt(time.Now(), tag, method, path, body)
}

// GenerateAt mints an id stamped with t. Identical inputs within the same UTC
// minute produce identical ids.
func GenerateAt(t time.Time, tag, method, path string, body any) (ID, error) {
	if err := checkSegment("tag", tag); err != nil {
		return ID{}, err
	}
	if err := checkSegment("method", method); err != nil {
		return ID{}, err
	}
	if strings.TrimSpace(path) == "" {
		return ID{}, fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}

	hash, err := BodyHash(body)
	if err != nil {
		return ID{}, err
	}

	id := ID{
		Tag:       tag,
		Method:    strings.ToUpper(method),
		PathSlug:  PathSlug(path),
		BodyHash:  hash,
		Timestamp: t.UTC().Format(TimestampLayout),
	}
	id.Value = strings.Join([]string{id.Tag, id.Method, id.PathSlug, id.BodyHash, id.Timestamp}, "_")
	return id, nil
}

// Parse decomposes an id string. The path slug may itself contain
// underscores; everything between the method and the body hash belongs to it.
func Parse(value string) (ID, error) {
	parts := strings.Split(value, "_")
	if len(parts) < minSegments {
		return ID{}, fmt.Errorf("%w: %q has %d segments, want tag_METHOD_path-slug_body-hash_timestamp",
			ErrFormat, value, len(parts))
	}
	n := len(parts)
	return ID{
		Value:     value,
		Tag:       parts[0],
		Method:    parts[1],
		PathSlug:  strings.Join(parts[2:n-2], "_"),
		BodyHash:  parts[n-2],
		Timestamp: parts[n-1],
	}, nil
}

// PathSlug reduces a request path to a dash-separated slug of at most 60
// characters. The query string is ignored.
func PathSlug(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	slug := strings.TrimPrefix(path, "/")
	slug = strings.ReplaceAll(slug, "/", "-")
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = dashRuns.ReplaceAllString(slug, "-")
	slug = strings.TrimSuffix(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimSuffix(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return RootSlug
	}
	return slug
}

// BodyHash returns the first 8 hex characters of the SHA-256 of the canonical
// body, or EmptyBodyHash for absent and empty bodies. Strings hash verbatim;
// anything else hashes its JSON encoding, which sorts map keys.
func BodyHash(body any) (string, error) {
	canonical, err := Canonical(body)
	if err != nil {
		return "", err
	}
	if canonical == "" {
		return EmptyBodyHash, nil
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:hashLen], nil
}

// Canonical returns the string form a body is hashed from, or "" when the
// body counts as empty.
func Canonical(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		if strings.TrimSpace(b) == "" {
			return "", nil
		}
		return b, nil
	case json.RawMessage:
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return "", fmt.Errorf("%w: body is not valid JSON: %v", ErrInvalidArgument, err)
		}
		return Canonical(v)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: body is not serializable: %v", ErrInvalidArgument, err)
	}
	data, err = sortedJSON(data)
	if err != nil {
		return "", fmt.Errorf("%w: body is not serializable: %v", ErrInvalidArgument, err)
	}
	switch s := string(data); s {
	case "{}", "[]", "null":
		return "", nil
	default:
		return s, nil
	}
}

// sortedJSON re-encodes data through a generic value so struct bodies hash
// the same as the maps they decode back into. Numbers keep their literal form.
func sortedJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func checkSegment(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	if strings.ContainsAny(v, `_/\`) {
		return fmt.Errorf("%w: %s %q must not contain '_', '/' or '\\'", ErrInvalidArgument, name, v)
	}
	return nil
}
