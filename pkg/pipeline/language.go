package pipeline

import (
	"errors"
	"strings"

	"github.com/hazyhaar/bibclean/pkg/marc"
)

// ErrNoLanguageDetermined means neither 008/35-37 nor 041 $a declared a
// language. The record is still processed with an empty language.
var ErrNoLanguageDetermined = errors.New("no language determined")

// Placeholder values of 008/35-37 that defer to 041.
var languagePlaceholders = map[string]bool{
	"":    true,
	"###": true,
	"|||": true,
	"und": true,
	"mul": true,
	"zxx": true,
}

// ResolveLanguage returns the governing language code and every declared
// code. 008/35-37 wins unless it is blank or a placeholder, in which case
// all 041 $a codes are collected (concatenated codes are split into
// three-letter chunks) and the first one governs.
func ResolveLanguage(rec *marc.Record) (string, []string, error) {
	var code string
	if f := rec.Field("008"); f != nil && len(f.Value) >= 38 {
		code = strings.ToLower(strings.TrimSpace(f.Value[35:38]))
	}
	if !languagePlaceholders[code] {
		return code, []string{code}, nil
	}

	var codes []string
	for _, f := range rec.GetFields("041") {
		for _, v := range f.SubfieldValues("a") {
			v = strings.ToLower(strings.Join(strings.Fields(v), ""))
			for len(v) >= 3 {
				codes = append(codes, v[:3])
				v = v[3:]
			}
		}
	}
	if len(codes) == 0 {
		return "", nil, ErrNoLanguageDetermined
	}
	return codes[0], codes, nil
}
