package teamsync

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// AllowedExtensions is the set of file extensions accepted for upload, lowercased and without the dot
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"json": true,
}

// ValidatePosition checks a report and converts it into a record.
// It has no side effects; the registry only ever sees its successful output.
func ValidatePosition(in PositionInput) (PositionRecord, error) {
	switch {
	case in.ClientID == "":
		return PositionRecord{}, &ValidationError{Field: "uuid", Err: ErrMissingField}
	case in.DisplayName == "":
		return PositionRecord{}, &ValidationError{Field: "name", Err: ErrMissingField}
	case isAbsent(in.Position):
		return PositionRecord{}, &ValidationError{Field: "position", Err: ErrMissingField}
	case in.ReportedAt == "":
		return PositionRecord{}, &ValidationError{Field: "timestamp", Err: ErrMissingField}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(in.Position, &fields); err != nil || fields == nil {
		return PositionRecord{}, &ValidationError{Field: "position", Err: ErrMalformedPosition}
	}
	rawEasting, okE := fields["easting"]
	rawNorthing, okN := fields["northing"]
	if !okE || !okN {
		return PositionRecord{}, &ValidationError{Field: "position", Err: ErrMalformedPosition}
	}

	easting, ok := parseCoordinate(rawEasting)
	if !ok {
		return PositionRecord{}, &ValidationError{Field: "position.easting", Err: ErrNonNumericCoordinate}
	}
	northing, ok := parseCoordinate(rawNorthing)
	if !ok {
		return PositionRecord{}, &ValidationError{Field: "position.northing", Err: ErrNonNumericCoordinate}
	}

	return PositionRecord{
		ClientID:    in.ClientID,
		DisplayName: in.DisplayName,
		Position:    Position{Easting: easting, Northing: northing},
		ReportedAt:  in.ReportedAt,
	}, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseCoordinate accepts only a bare JSON number that fits a finite float64.
func parseCoordinate(raw json.RawMessage) (float64, bool) {
	s := string(bytes.TrimSpace(raw))
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ValidateAssetName checks an uploaded file name against the naming rules.
func ValidateAssetName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return ErrInvalidName
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ErrDisallowedExtension
	}
	if !AllowedExtensions[strings.ToLower(name[idx+1:])] {
		return ErrDisallowedExtension
	}
	return nil
}
