// Package knol derives stable identities for deck entries, so that an
// entry keeps its card (and its review history) across re-imports.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/lingosrs/internal/domain"
)

// Normalize joins the draft's fields after cleaning each one: line
// endings are unified, case is folded and runs of spaces collapse, so
// cosmetic edits to a deck file do not produce a new card.
func Normalize(d domain.CardDraft) string {
	return strings.Join([]string{
		normalizePart(d.Front),
		normalizePart(d.Back),
		normalizePart(d.Context),
	}, "\n")
}

func normalizePart(part string) string {
	part = strings.ReplaceAll(strings.ToLower(part), "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(part), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}

// Hash returns the hex SHA-256 of the normalized draft.
func Hash(d domain.CardDraft) string {
	sum := sha256.Sum256([]byte(Normalize(d)))
	return hex.EncodeToString(sum[:])
}
