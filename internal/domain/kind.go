package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OperationKind enumerates the operations a user can run against a provider.
type OperationKind string

const (
	KindGenerate      OperationKind = "generate"
	KindEdit          OperationKind = "edit"
	KindExpand        OperationKind = "expand"
	KindFuse          OperationKind = "fuse"
	KindStyleTransfer OperationKind = "style-transfer"
	KindUpscale       OperationKind = "upscale"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []OperationKind{
	KindGenerate,
	KindEdit,
	KindExpand,
	KindFuse,
	KindStyleTransfer,
	KindUpscale,
}

// ParseKind normalizes free-form input into a supported kind.
func ParseKind(raw string) (OperationKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	if normalized == "styletransfer" || normalized == "style" {
		normalized = string(KindStyleTransfer)
	}
	for _, k := range Kinds {
		if string(k) == normalized {
			return k, true
		}
	}
	return "", false
}

// Valid reports whether k is one of the supported kinds.
func (k OperationKind) Valid() bool {
	_, ok := ParseKind(string(k))
	return ok
}

// Label renders the kind for user-facing messages, e.g. "Style Transfer".
func (k OperationKind) Label() string {
	words := strings.ReplaceAll(string(k), "-", " ")
	return cases.Title(language.Und).String(words)
}
