package project

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/gowebpki/jcs"
	"github.com/pelletier/go-toml/v2"
)

// Format is a project file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported project format %q", name)
	}
}

// FormatFromPath picks a format from a file extension
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer project format from %q", path)
	}
	return ParseFormat(ext)
}

// Ext returns the file extension for the format
func (f Format) Ext() string {
	return "." + string(f)
}

// ErrUnsupportedNull is returned when a project holding null values is
// encoded as TOML, which has no null
var ErrUnsupportedNull = errors.New("unsupported null")

// Encode serializes a project. TOML encoding fails with ErrUnsupportedNull
// rather than dropping null values.
func Encode(p *Project, format Format) ([]byte, error) {
	p = p.normalized()

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = sonic.ConfigStd.MarshalIndent(p, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(p)
	case FormatTOML:
		if err = checkTOML(p); err == nil {
			data, err = toml.Marshal(p)
		}
	default:
		return nil, fmt.Errorf("unsupported project format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s project: %w", format, err)
	}
	return data, nil
}

// Decode parses project bytes into a generic mapping. Values are
// normalized to what JSON decoding produces (numbers become float64) so
// every format yields the same in-memory shape. The top-level structure is
// not checked here; see Parse.
func Decode(data []byte, format Format) (map[string]interface{}, error) {
	var raw map[string]interface{}
	var err error

	switch format {
	case FormatJSON:
		err = sonic.ConfigStd.Unmarshal(data, &raw)
		if err != nil {
			return nil, fmt.Errorf("decode json project: %w", err)
		}
		return raw, nil
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported project format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s project: %w", format, err)
	}
	return normalize(raw)
}

// normalize round-trips a decoded value through JSON
func normalize(raw map[string]interface{}) (map[string]interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := sonic.ConfigStd.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize project: %w", err)
	}
	var out map[string]interface{}
	if err := sonic.ConfigStd.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize project: %w", err)
	}
	return out, nil
}

// Canonical returns the RFC 8785 canonical JSON form of a project. Two
// projects with equal content always produce identical bytes.
func Canonical(p *Project) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(p.normalized())
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalize project: %w", err)
	}
	return canonical, nil
}

// Digest returns the sha256 hex digest of the canonical form
func Digest(p *Project) (string, error) {
	canonical, err := Canonical(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// checkTOML reports the first null value in p
func checkTOML(p *Project) error {
	for i, sc := range p.Scripts {
		if err := findNull(sc, fmt.Sprintf("%s[%d]", KeyScripts, i)); err != nil {
			return err
		}
	}
	for name, state := range p.Addons {
		if err := findNull(state, KeyAddons+"."+name); err != nil {
			return err
		}
	}
	return nil
}

func findNull(v interface{}, path string) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("%w at %s", ErrUnsupportedNull, path)
	case map[string]interface{}:
		for k, item := range val {
			if err := findNull(item, path+"."+k); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, item := range val {
			if err := findNull(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case []map[string]interface{}:
		for i, item := range val {
			if err := findNull(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}
